package domain

import "time"

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"`
}

// SystemActor is recorded as the actor for writes performed by background workers.
const SystemActor = "SYSTEM"

// BalanceTolerance is the maximum allowed difference between total debits and credits.
const BalanceTolerance = "0.001"
