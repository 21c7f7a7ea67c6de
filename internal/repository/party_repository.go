package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/housekeeping-contracts/internal/model"
)

const defaultSearchLimit = 20

// likeEscaper makes % and _ in a search query match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type partyRecord struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	PhoneNumber  string    `gorm:"column:phone_number"`
	IDCardNumber string    `gorm:"column:id_card_number"`
	Address      string    `gorm:"column:address"`
}

type PartyRepository struct {
	db *gorm.DB
}

func NewPartyRepository(db *gorm.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

// Search matches the query against name and phone number. It only feeds form
// autocomplete.
func (r *PartyRepository) Search(ctx context.Context, role model.PartyRole, query string, limit int) ([]model.Party, error) {
	table, err := partyTable(role)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = defaultSearchLimit
	}

	tx := r.db.WithContext(ctx).Table(table)
	query = strings.TrimSpace(query)
	if query != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
		tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\' OR phone_number LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	var rows []partyRecord
	if err := tx.Order("name ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]model.Party, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Party{
			ID:   row.ID,
			Role: role,
			PartyInfo: model.PartyInfo{
				Name:         row.Name,
				PhoneNumber:  row.PhoneNumber,
				IDCardNumber: row.IDCardNumber,
				Address:      row.Address,
			},
		})
	}
	return out, nil
}

func partyTable(role model.PartyRole) (string, error) {
	switch role {
	case model.PartyRoleCustomer:
		return "customers", nil
	case model.PartyRoleEmployee:
		return "employees", nil
	default:
		return "", fmt.Errorf("unknown party role %q", role)
	}
}
