// Package filetype decides which extractor handles an uploaded file.
package filetype

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/FACorreiaa/smart-import/internal/domain/import/model"
)

var byExtension = map[string]model.FileKind{
	".pdf":  model.KindPDF,
	".xlsx": model.KindXLSX,
	".xls":  model.KindXLS,
	".csv":  model.KindCSV,
	".png":  model.KindImage,
	".jpg":  model.KindImage,
	".jpeg": model.KindImage,
	".webp": model.KindImage,
	".gif":  model.KindImage,
}

var byMIME = map[string]model.FileKind{
	"application/pdf":           model.KindPDF,
	"application/vnd.ms-excel":  model.KindXLS,
	"application/x-ole-storage": model.KindXLS,
	"text/csv":                  model.KindCSV,
	"application/csv":           model.KindCSV,
	"image/png":                 model.KindImage,
	"image/jpeg":                model.KindImage,
	"image/jpg":                 model.KindImage,
	"image/webp":                model.KindImage,
	"image/gif":                 model.KindImage,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": model.KindXLSX,
}

// Detect resolves the kind of a file from its name, then from the declared
// content type, then from its leading bytes. ok is false for unsupported
// files.
func Detect(name, contentType string, head []byte) (model.FileKind, bool) {
	if kind, ok := byExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return kind, true
	}

	if kind, ok := fromMIME(contentType); ok {
		return kind, true
	}

	if len(head) == 0 {
		return "", false
	}
	for m := mimetype.Detect(head); m != nil; m = m.Parent() {
		if kind, ok := byMIME[m.String()]; ok {
			return kind, true
		}
		if kind, ok := byExtension[m.Extension()]; ok {
			return kind, true
		}
	}
	return "", false
}

// MIMEType returns the content type sent along with images to the vision
// service.
func MIMEType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); strings.HasPrefix(t, "image/") {
		return t
	}
	return mimetype.Detect(data).String()
}

func fromMIME(contentType string) (model.FileKind, bool) {
	if contentType == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	kind, ok := byMIME[strings.ToLower(mediaType)]
	return kind, ok
}
