package render

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/dmitriyb/ciyaml/internal/pipeline"
)

// hashLength is the number of hex characters of the script digest kept in
// job names.
const hashLength = 10

// ScriptHash returns the first hashLength hex characters of the BLAKE3
// digest of script.
func ScriptHash(script string) string {
	sum := blake3.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])[:hashLength]
}

// JobName builds a stable, human-readable job name for a batch:
// prefix, project, version, distribution and script name joined with
// underscores, followed by the hash of the rendered script. Empty parts
// are left out and characters unsafe in job names become dashes.
func JobName(prefix, project string, b *pipeline.Batch, script string) string {
	var parts []string
	for _, p := range []string{project, b.Variant.Version, b.Variant.Dist, b.Variant.Name} {
		if p = sanitize(p); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, ScriptHash(script))
	return sanitize(prefix) + strings.Join(parts, "_")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return '-'
	}, strings.TrimSpace(s))
}
