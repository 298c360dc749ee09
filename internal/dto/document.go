package dto

// RenameDocumentRequest renames a document.
type RenameDocumentRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// AuthenticateDocumentRequest carries the credential for a locked document's challenge.
type AuthenticateDocumentRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// SummaryRequest selects a summary length preset (short, medium, long).
type SummaryRequest struct {
	Length string `json:"length" binding:"omitempty,oneof=short medium long"`
}

// ListDocumentsQuery filters the library.
type ListDocumentsQuery struct {
	Query  string `form:"q" binding:"max=255"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// EntitlementRequest toggles the premium entitlement outside production.
type EntitlementRequest struct {
	Premium *bool `json:"premium" binding:"required"`
}

// EntitlementResponse reports the entitlement after a toggle.
type EntitlementResponse struct {
	Premium bool `json:"premium"`
}
