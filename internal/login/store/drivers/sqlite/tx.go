package sqlite

import (
	"database/sql"

	"github.com/civicwatch/reportline/internal/login/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Accounts() store.Accounts             { return &accountsRepo{q: t.tx} }
func (t *txStore) TrustedDevices() store.TrustedDevices { return &trustedDevicesRepo{q: t.tx} }
func (t *txStore) OTPChallenges() store.OTPChallenges   { return &otpChallengesRepo{q: t.tx} }
func (t *txStore) ActivityLog() store.ActivityLog       { return &activityLogRepo{q: t.tx} }
func (t *txStore) Reports() store.Reports               { return &reportsRepo{q: t.tx} }
