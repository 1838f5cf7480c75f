package downloader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// signatures maps an extension to the leading bytes files of that type start with
var signatures = map[string][][]byte{
	"pdf":  {[]byte("%PDF-")},
	"epub": {[]byte("PK\x03\x04")},
	"zip":  {[]byte("PK\x03\x04")},
	"cbz":  {[]byte("PK\x03\x04")},
	"djvu": {[]byte("AT&TFORM")},
	"mobi": nil, // signature sits at offset 60, checked separately
	"azw3": nil,
	"fb2":  {[]byte("<?xml"), []byte("\xef\xbb\xbf<?xml")},
	"rar":  {[]byte("Rar!\x1a\x07")},
	"cbr":  {[]byte("Rar!\x1a\x07")},
}

// VerifyFile checks that a downloaded file looks like the expected
// format. Unknown extensions pass.
func VerifyFile(path, ext string) error {
	if path == "" {
		return fmt.Errorf("file path is empty")
	}

	// Open the file
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	head := make([]byte, 68)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("failed to read file: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return fmt.Errorf("file is empty")
	}
	if looksLikeHTML(head) {
		return ErrHTMLContent
	}

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "mobi", "azw3":
		if n >= 68 && (bytes.Equal(head[60:68], []byte("BOOKMOBI")) || bytes.Equal(head[60:68], []byte("TEXtREAd"))) {
			return nil
		}
		return fmt.Errorf("file does not look like %s", ext)
	}

	sigs, ok := signatures[ext]
	if !ok {
		return nil
	}
	for _, sig := range sigs {
		if bytes.HasPrefix(head, sig) {
			return nil
		}
	}
	return fmt.Errorf("file does not look like %s", ext)
}
