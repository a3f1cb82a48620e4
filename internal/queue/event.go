// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationValidatedEvent is published when an administrator approves a
// reservation.  It carries enough information for downstream consumers to
// log or notify without querying the primary database.
type ReservationValidatedEvent struct {
	ReservationID uint64  `json:"reservation_id"`
	UserID        uint64  `json:"user_id"`
	UserEmail     string  `json:"user_email"`
	SalleID       uint64  `json:"salle_id"`
	SalleNom      string  `json:"salle_nom"`
	DateDebut     string  `json:"date_debut"`
	DateFin       string  `json:"date_fin"`
	BonCode       string  `json:"bon_code,omitempty"`
	BonMontant    float64 `json:"bon_montant,omitempty"`
	ValidatedAt   string  `json:"validated_at"`
}
