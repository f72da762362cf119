/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package postgres

import (
	"fmt"
	"time"

	"github.com/aquariusluo/creditscore/common"
	"github.com/aquariusluo/creditscore/state"
	"github.com/aquariusluo/creditscore/store/providers"
	"github.com/jinzhu/gorm"
	provide "github.com/provideplatform/provide-go/api"
)

// AccountRecord is the durable representation of a ledger record
type AccountRecord struct {
	provide.Model

	Account           string     `sql:"not null;unique" json:"account"`
	IncomeCiphertext  []byte     `json:"-"`
	AssetsCiphertext  []byte     `json:"-"`
	HistoryCiphertext []byte     `json:"-"`
	ScoreCiphertext   []byte     `json:"-"`
	RevealedScore     *int64     `json:"-"`
	State             string     `sql:"not null" json:"state"`
	Generation        int64      `sql:"not null" json:"generation"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	ComputedAt        *time.Time `json:"computed_at"`
	RevealedAt        *time.Time `json:"revealed_at"`
}

// TableName returns the account records table name
func (AccountRecord) TableName() string {
	return "account_records"
}

// Grant is the durable representation of a validator grant
type Grant struct {
	provide.Model

	Owner     string `sql:"not null" json:"owner"`
	Validator string `sql:"not null" json:"validator"`
}

// TableName returns the grants table name
func (Grant) TableName() string {
	return "grants"
}

// AuditEntry is a durable, append-only audit trail leaf
type AuditEntry struct {
	ID        uint64    `gorm:"primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Value     []byte    `sql:"not null" json:"value"`
}

// TableName returns the audit entries table name
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// Postgres persists account records, grants and audit entries with gorm
type Postgres struct {
	db *gorm.DB
}

// InitPostgresProvider returns a provider using the given db connection
func InitPostgresProvider(db *gorm.DB) *Postgres {
	return &Postgres{
		db: db,
	}
}

func (row *AccountRecord) record() (*providers.Record, error) {
	st, err := state.Parse(row.State)
	if err != nil {
		return nil, err
	}

	var revealed *uint64
	if row.RevealedScore != nil {
		v := uint64(*row.RevealedScore)
		revealed = &v
	}

	return &providers.Record{
		Account:           row.Account,
		IncomeCiphertext:  row.IncomeCiphertext,
		AssetsCiphertext:  row.AssetsCiphertext,
		HistoryCiphertext: row.HistoryCiphertext,
		ScoreCiphertext:   row.ScoreCiphertext,
		RevealedScore:     revealed,
		State:             st,
		Generation:        uint64(row.Generation),
		SubmittedAt:       row.SubmittedAt,
		ComputedAt:        row.ComputedAt,
		RevealedAt:        row.RevealedAt,
	}, nil
}

func (row *AccountRecord) assign(r *providers.Record) {
	row.Account = r.Account
	row.IncomeCiphertext = r.IncomeCiphertext
	row.AssetsCiphertext = r.AssetsCiphertext
	row.HistoryCiphertext = r.HistoryCiphertext
	row.ScoreCiphertext = r.ScoreCiphertext
	row.RevealedScore = nil
	if r.RevealedScore != nil {
		v := int64(*r.RevealedScore)
		row.RevealedScore = &v
	}
	row.State = r.State.String()
	row.Generation = int64(r.Generation)
	row.SubmittedAt = r.SubmittedAt
	row.ComputedAt = r.ComputedAt
	row.RevealedAt = r.RevealedAt
}

// Load returns the record for the given account, or nil
func (p *Postgres) Load(account string) (*providers.Record, error) {
	row := &AccountRecord{}
	err := p.db.Where("account = ?", account).First(row).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load account record for %s; %s", account, err.Error())
	}

	return row.record()
}

// Save upserts the full record in a single statement
func (p *Postgres) Save(record *providers.Record) error {
	row := &AccountRecord{}
	err := p.db.Where("account = ?", record.Account).First(row).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return fmt.Errorf("failed to resolve account record for %s; %s", record.Account, err.Error())
	}

	row.assign(record.Clone())

	if p.db.NewRecord(row) {
		result := p.db.Create(row)
		if errs := result.GetErrors(); len(errs) > 0 {
			return fmt.Errorf("failed to create account record for %s; %s", record.Account, errs[0].Error())
		}
		common.Log.Debugf("created account record for %s", record.Account)
		return nil
	}

	result := p.db.Save(row)
	if errs := result.GetErrors(); len(errs) > 0 {
		return fmt.Errorf("failed to update account record for %s; %s", record.Account, errs[0].Error())
	}
	return nil
}

// ListGrants returns the validators of each owner, sorted
func (p *Postgres) ListGrants() (map[string][]string, error) {
	var rows []*Grant
	err := p.db.Order("owner ASC, validator ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list grants; %s", err.Error())
	}

	grants := map[string][]string{}
	for _, row := range rows {
		grants[row.Owner] = append(grants[row.Owner], row.Validator)
	}
	return grants, nil
}

// InsertGrant records an active grant; duplicates are ignored
func (p *Postgres) InsertGrant(owner, validator string) error {
	row := &Grant{}
	err := p.db.Where(Grant{Owner: owner, Validator: validator}).FirstOrCreate(row).Error
	if err != nil {
		return fmt.Errorf("failed to insert grant of %s to %s; %s", owner, validator, err.Error())
	}
	return nil
}

// DeleteGrant removes a grant if present
func (p *Postgres) DeleteGrant(owner, validator string) error {
	err := p.db.Where("owner = ? AND validator = ?", owner, validator).Delete(&Grant{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete grant of %s to %s; %s", owner, validator, err.Error())
	}
	return nil
}

// ListAuditEntries returns the encoded audit entries in insertion order
func (p *Postgres) ListAuditEntries() ([][]byte, error) {
	var rows []*AuditEntry
	err := p.db.Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries; %s", err.Error())
	}

	entries := make([][]byte, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.Value)
	}
	return entries, nil
}

// InsertAuditEntry appends an encoded audit entry
func (p *Postgres) InsertAuditEntry(raw []byte) error {
	row := &AuditEntry{Value: raw}
	result := p.db.Create(row)
	if errs := result.GetErrors(); len(errs) > 0 {
		return fmt.Errorf("failed to insert audit entry; %s", errs[0].Error())
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to insert audit entry")
	}
	return nil
}
