package imageprocessing

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// DecodeImageData turns the stored image payload into raw bytes. The payload is normally a
// data URL produced by the browser; bare base64 is accepted as well.
func DecodeImageData(imageData string) (data []byte, contentType string, err error) {
	trimmed := strings.TrimSpace(imageData)
	if trimmed == "" {
		return nil, "", fmt.Errorf("%w: empty image data", ErrUnsupportedImage)
	}

	if strings.HasPrefix(trimmed, "data:") {
		decoded, err := dataurl.DecodeString(trimmed)
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid data URL: %v", ErrUnsupportedImage, err)
		}
		return decoded.Data, decoded.MediaType.ContentType(), nil
	}

	data, err = base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, "", fmt.Errorf("%w: payload is neither a data URL nor base64: %v", ErrUnsupportedImage, err)
	}
	return data, "", nil
}
