package air

import (
	"bytes"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"
)

// airMinifier minifies content by MIME type, grounded on the teacher's
// minifier and wired to tdewolff/minify/v2.
type airMinifier struct {
	m *minify.M
}

// newMinifier returns a ready *airMinifier with no minifiers registered;
// they are registered lazily, on the first request for each MIME type.
func newMinifier() *airMinifier {
	return &airMinifier{m: minify.New()}
}

// minify minifies b according to mimeType, registering the matching
// tdewolff/minify/v2 minifier the first time mimeType is seen.
func (m *airMinifier) minify(mimeType string, b []byte) ([]byte, error) {
	if ss := strings.Split(mimeType, ";"); len(ss) > 1 {
		mimeType = ss[0]
	}

	buf := &bytes.Buffer{}
	err := m.m.Minify(mimeType, buf, bytes.NewReader(b))
	if err != minify.ErrNotExist {
		return buf.Bytes(), err
	}

	switch mimeType {
	case "text/html":
		m.m.Add(mimeType, html.Minify)
	case "text/css":
		m.m.Add(mimeType, css.Minify)
	case "application/javascript", "text/javascript":
		m.m.Add(mimeType, js.Minify)
	case "application/json":
		m.m.Add(mimeType, json.Minify)
	case "application/xml", "text/xml":
		m.m.Add(mimeType, xml.Minify)
	case "image/svg+xml":
		m.m.Add(mimeType, svg.Minify)
	case "image/jpeg":
		m.m.AddFunc(mimeType, func(_ *minify.M, w io.Writer, r io.Reader, _ map[string]string) error {
			img, err := jpeg.Decode(r)
			if err != nil {
				return err
			}
			return jpeg.Encode(w, img, nil)
		})
	case "image/png":
		m.m.AddFunc(mimeType, func(_ *minify.M, w io.Writer, r io.Reader, _ map[string]string) error {
			img, err := png.Decode(r)
			if err != nil {
				return err
			}
			return (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(w, img)
		})
	default:
		return b, nil
	}

	return m.minify(mimeType, b)
}
