package domain

import (
	"path/filepath"
	"strings"
)

var allowedUploadExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Upload is the file received in the "image" form field.
type Upload struct {
	Filename string
	Data     []byte
}

func (u Upload) Validate() error {
	if err := u.ValidateName(); err != nil {
		return err
	}
	if len(u.Data) == 0 {
		return NewError(KindInputValidation, "Empty file", nil)
	}
	return nil
}

// ValidateName checks only the filename, so callers can reject an upload
// before reading its body.
func (u Upload) ValidateName() error {
	if u.Filename == "" {
		return NewError(KindInputValidation, "No selected file", nil)
	}
	if !allowedUploadExtensions[strings.ToLower(filepath.Ext(u.Filename))] {
		return NewError(KindInputValidation, "Unsupported file type", nil)
	}
	return nil
}
