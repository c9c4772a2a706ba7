package evidence

// Type de evidencia.
// @Enum image, document, statement, other
type Type string

const (
	TypeImage     Type = "image"
	TypeDocument  Type = "document"
	TypeStatement Type = "statement"
	TypeOther     Type = "other"
)

func (t Type) Valid() bool {
	switch t {
	case TypeImage, TypeDocument, TypeStatement, TypeOther:
		return true
	default:
		return false
	}
}

// Category de evidencia.
// @Enum radiograph, photograph, previous_report, testimony, other
type Category string

const (
	CategoryRadiograph     Category = "radiograph"
	CategoryPhotograph     Category = "photograph"
	CategoryPreviousReport Category = "previous_report"
	CategoryTestimony      Category = "testimony"
	CategoryOther          Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryRadiograph, CategoryPhotograph, CategoryPreviousReport, CategoryTestimony, CategoryOther:
		return true
	default:
		return false
	}
}

// Límites de upload.
const (
	MaxFiles    = 10
	MaxFileSize = 5 << 20 // 5 MiB
)

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// AllowedMimeType indica si el tipo MIME es aceptado como archivo de evidencia.
func AllowedMimeType(mime string) bool {
	_, ok := allowedMimeTypes[mime]
	return ok
}
