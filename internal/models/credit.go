package models

// CreditBalance mirrors the usage endpoint payload. TotalAvailable and
// Remaining are derived server-side; the backend enforces Remaining >= 0.
// Clients may hold a transient optimistic view, but only this shape, as
// returned by the usage endpoint, is ever ground truth.
type CreditBalance struct {
	Used           int    `json:"used"`
	PlanLimit      int    `json:"planLimit"`
	Purchased      int    `json:"purchased"`
	TotalAvailable int    `json:"totalAvailable"`
	Remaining      int    `json:"remaining"`
	Status         string `json:"status"`
}

// Derive fills the computed fields from the stored ones.
func (b *CreditBalance) Derive() {
	b.TotalAvailable = b.PlanLimit + b.Purchased
	b.Remaining = b.TotalAvailable - b.Used
}
