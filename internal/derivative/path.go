package derivative

import (
	"path"
	"strings"

	"thumbnails/internal/raster"
	"thumbnails/internal/types"
)

// FilenamePlaceholder is replaced by the source file's base name in the
// per-source folder template.
const FilenamePlaceholder = "{filename}"

// Path returns the destination key for one derivative of sourceKey:
// {folder}/{template with base name}/{W}x{H}{ext}. It is a pure function of
// its inputs.
func Path(folder, template, sourceKey string, spec types.DerivativeSpec, ext string) string {
	base := path.Base(sourceKey)
	sub := strings.ReplaceAll(template, FilenamePlaceholder, base)
	return path.Join(folder, sub, spec.String()+ext)
}

// Extension returns the extension derivatives of base are written with: the
// source's own extension, or the encoded format's when base has none.
func Extension(base string, format raster.Format) string {
	if ext := path.Ext(base); ext != "" {
		return ext
	}
	return "." + string(format)
}

// Paths returns the destination keys for every spec, in order, using the
// source key's extension. A key without an extension only gets one once its
// format is known, so Generator.Generate reports the keys it actually used.
func Paths(folder, template, sourceKey string, specs []types.DerivativeSpec) []string {
	ext := path.Ext(path.Base(sourceKey))
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		out = append(out, Path(folder, template, sourceKey, spec, ext))
	}
	return out
}
