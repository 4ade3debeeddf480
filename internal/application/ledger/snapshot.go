package ledger

import (
	"brickshare-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Snapshot is the share accounting of one property.
type Snapshot struct {
	TotalShares     int64 `json:"total_shares"`
	AvailableShares int64 `json:"available_shares"`
	InvestedShares  int64 `json:"invested_shares"`
	ReservedShares  int64 `json:"reserved_shares"`
}

// Balanced reports whether available + invested + reserved == total with no negative pool.
// Once no application is pending this is available + Σ investment shares == total.
func (s Snapshot) Balanced() bool {
	return s.AvailableShares >= 0 && s.AvailableShares+s.InvestedShares+s.ReservedShares == s.TotalShares
}

// Unallocated is what the property can still hand out: total minus invested and reserved.
func (s Snapshot) Unallocated() int64 {
	return s.TotalShares - s.InvestedShares - s.ReservedShares
}

// TakeSnapshot sums confirmed and reserved shares for a property.
func TakeSnapshot(db *gorm.DB, propertyID uuid.UUID) (Snapshot, error) {
	var p domain.Property
	if err := db.Select("total_shares, available_shares").Where("id = ?", propertyID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Snapshot{}, ErrPropertyNotFound
		}
		return Snapshot{}, err
	}
	snap := Snapshot{TotalShares: p.TotalShares, AvailableShares: p.AvailableShares}
	if err := db.Model(&domain.Investment{}).
		Where("property_id = ?", propertyID).
		Select("COALESCE(SUM(shares), 0)").
		Scan(&snap.InvestedShares).Error; err != nil {
		return Snapshot{}, err
	}
	if err := db.Model(&domain.Application{}).
		Where("property_id = ? AND status = ?", propertyID, domain.ApplicationStatusPending).
		Select("COALESCE(SUM(requested_shares), 0)").
		Scan(&snap.ReservedShares).Error; err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
