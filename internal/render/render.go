// Package render turns instruction batches into executable shell or batch
// scripts. Every stage declared in the pipeline is announced by an echoed
// sentinel so a log reader can attribute output and failures to a stage.
package render

import (
	"fmt"
	"strings"

	"github.com/dmitriyb/ciyaml/internal/config"
	"github.com/dmitriyb/ciyaml/internal/pipeline"
)

// Flavor selects the script dialect.
type Flavor int

const (
	Bash Flavor = iota
	Batch
)

// FlavorFor returns the dialect used on a platform.
func FlavorFor(platform string) Flavor {
	if platform == config.PlatformWindows {
		return Batch
	}
	return Bash
}

func (f Flavor) String() string {
	if f == Batch {
		return "batch"
	}
	return "bash"
}

// Ext is the file extension scripts of this flavor are saved with.
func (f Flavor) Ext() string {
	if f == Batch {
		return ".bat"
	}
	return ".sh"
}

// Render serializes b. Each stage listed in b.Stages produces its sentinel
// followed by its commands, in order, even when the stage has no command
// for this variant. The output depends only on b and flavor.
func Render(b *pipeline.Batch, flavor Flavor) string {
	var w strings.Builder
	nl := "\n"
	if flavor == Batch {
		nl = "\r\n"
		w.WriteString("@echo off" + nl)
	} else {
		w.WriteString("#!/bin/bash" + nl)
		w.WriteString("set -e" + nl)
	}

	for _, stage := range b.Stages {
		if flavor == Batch {
			fmt.Fprintf(&w, "@echo %s%s", stage.Sentinel(), nl)
		} else {
			fmt.Fprintf(&w, "echo %s%s", stage.Sentinel(), nl)
		}
		for _, inst := range b.Instructions {
			if inst.Stage != stage {
				continue
			}
			w.WriteString(inst.Command + nl)
			if flavor == Batch {
				w.WriteString("if %errorlevel% neq 0 exit /b %errorlevel%" + nl)
			}
		}
	}
	return w.String()
}
