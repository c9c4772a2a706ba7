package render

import "context"

type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Document es el laudo ya armado para renderizar (PDF u otro formato).
type Document struct {
	ReportID   string    `json:"report_id"`
	CaseID     string    `json:"case_id"`
	Title      string    `json:"title"`
	Template   string    `json:"template"`
	Version    int       `json:"version"`
	Sections   []Section `json:"sections"`
	References []string  `json:"references,omitempty"`
	Author     string    `json:"author"`
	Reviewer   string    `json:"reviewer,omitempty"`
}

// Artifact es la referencia al documento generado.
type Artifact struct {
	URL string `json:"url"`
}

// Renderer genera el documento exportable de un laudo finalizado.
type Renderer interface {
	Render(ctx context.Context, doc Document) (Artifact, error)
}
