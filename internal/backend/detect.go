package backend

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ekisa-team/dlrshim/internal/xfs"
)

const (
	paramsExt = ".params"
	tfliteExt = ".tflite"
)

// Detect classifies the model at path. A path ending in ".tflite" is a
// mobile-inference model. Otherwise the directory is listed: any file ending
// in ".params" selects tvm, else any file ending in ".tflite" selects tflite.
// Everything else is a tree ensemble.
//
// The only error is a failure to list the directory.
func Detect(fsys xfs.FileSystem, path string) (Kind, error) {
	if strings.HasSuffix(path, tfliteExt) {
		return KindTFLite, nil
	}

	files, err := xfs.ListDirectory(fsys, path)
	if err != nil {
		return "", fmt.Errorf("detect backend: %w", err)
	}

	hasSuffix := func(ext string) bool {
		return slices.ContainsFunc(files, func(f string) bool { return strings.HasSuffix(f, ext) })
	}

	switch {
	case hasSuffix(paramsExt):
		return KindTVM, nil
	case hasSuffix(tfliteExt):
		return KindTFLite, nil
	}

	return KindTreelite, nil
}
