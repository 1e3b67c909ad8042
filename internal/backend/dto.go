package backend

const (
	statusSuccess = "success"
	statusError   = "error"
)

// SaveFormulasRequest is the body of POST /api/formulas. Null reactant entries are skipped.
type SaveFormulasRequest struct {
	Product   *string   `json:"product"`
	Reactants []*string `json:"reactants"`
}

type SaveImageRequest struct {
	ImageData string `json:"image_data" validate:"required"`
}

type FormulasResponse struct {
	Products  []string `json:"products"`
	Reactants []string `json:"reactants"`
}

// ImageResponse carries a null image_data when nothing is stored.
type ImageResponse struct {
	ImageData *string `json:"image_data"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
