package detect

import (
	"fmt"
	"strings"

	"github.com/makiuchi-d/gozxing"
)

// Format is a symbology tag.
type Format string

const (
	FormatUnknown    Format = "unknown"
	FormatUPCA       Format = "upc_a"
	FormatUPCE       Format = "upc_e"
	FormatEAN13      Format = "ean_13"
	FormatEAN8       Format = "ean_8"
	FormatCode128    Format = "code_128"
	FormatCode39     Format = "code_39"
	FormatCode93     Format = "code_93"
	FormatCodabar    Format = "codabar"
	FormatITF        Format = "itf"
	FormatRSS14      Format = "rss_14"
	FormatQRCode     Format = "qr_code"
	FormatDataMatrix Format = "data_matrix"
	FormatPDF417     Format = "pdf_417"
)

// AllFormats lists every symbology the chain knows about.
var AllFormats = []Format{
	FormatUPCA, FormatUPCE, FormatEAN13, FormatEAN8,
	FormatCode128, FormatCode39, FormatCode93, FormatCodabar, FormatITF,
	FormatRSS14, FormatQRCode, FormatDataMatrix, FormatPDF417,
}

// Linear reports whether the format is a 1D symbology.
func (f Format) Linear() bool {
	switch f {
	case FormatQRCode, FormatDataMatrix, FormatPDF417, FormatUnknown:
		return false
	default:
		return true
	}
}

// ParseFormat accepts "ean_13", "EAN-13", "ean13" and similar spellings.
func ParseFormat(s string) (Format, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	for _, f := range AllFormats {
		if strings.ReplaceAll(string(f), "_", "") == norm {
			return f, nil
		}
	}
	switch norm {
	case "qr":
		return FormatQRCode, nil
	case "gs1databar", "databar":
		return FormatRSS14, nil
	}
	return FormatUnknown, fmt.Errorf("unknown barcode format %q", s)
}

// ParseFormats parses a list, rejecting unknown names.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

var zxingFormats = map[gozxing.BarcodeFormat]Format{
	gozxing.BarcodeFormat_UPC_A:       FormatUPCA,
	gozxing.BarcodeFormat_UPC_E:       FormatUPCE,
	gozxing.BarcodeFormat_EAN_13:      FormatEAN13,
	gozxing.BarcodeFormat_EAN_8:       FormatEAN8,
	gozxing.BarcodeFormat_CODE_128:    FormatCode128,
	gozxing.BarcodeFormat_CODE_39:     FormatCode39,
	gozxing.BarcodeFormat_CODE_93:     FormatCode93,
	gozxing.BarcodeFormat_CODABAR:     FormatCodabar,
	gozxing.BarcodeFormat_ITF:         FormatITF,
	gozxing.BarcodeFormat_RSS_14:      FormatRSS14,
	gozxing.BarcodeFormat_QR_CODE:     FormatQRCode,
	gozxing.BarcodeFormat_DATA_MATRIX: FormatDataMatrix,
	gozxing.BarcodeFormat_PDF_417:     FormatPDF417,
}

func formatFromZXing(f gozxing.BarcodeFormat) Format {
	if out, ok := zxingFormats[f]; ok {
		return out
	}
	return FormatUnknown
}
