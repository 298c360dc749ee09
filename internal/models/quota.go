package models

// QuotaState is derived from the document collection on demand.
type QuotaState struct {
	Count         int  `json:"count"`
	FreeLimit     int  `json:"freeLimit"`
	RemainingFree int  `json:"remainingFree"`
	Streak        int  `json:"streak"`
	Premium       bool `json:"premium"`
	CanCreate     bool `json:"canCreate"`
}
