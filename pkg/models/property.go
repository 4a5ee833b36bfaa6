package models

import (
	"time"
)

// Category is the sales-priority label derived from price band and score
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
	CategoryC Category = "C"
)

// ModifiedBySheet marks rows whose last change came from the deals sheet
const ModifiedBySheet = "SHEET"

// Property is the authoritative business record for a signed deal.
// Deal-owned fields are overwritten on every sync from the deals sheet and
// the CRM API; progress fields belong to the workflow UI and are never
// touched by the reconciler on existing rows.
type Property struct {
	CRMID          string     `db:"crm_id" json:"crm_id"`
	DateSigned     *time.Time `db:"date_signed" json:"date_signed,omitempty"`
	ContractNumber string     `db:"contract_number" json:"contract_number"`
	Agent          string     `db:"agent" json:"agent"`
	TeamLead       string     `db:"team_lead" json:"team_lead"`
	Director       string     `db:"director" json:"director"`
	ClientName     string     `db:"client_name" json:"client_name"`
	Address        string     `db:"address" json:"address"`
	Complex        string     `db:"complex" json:"complex"`
	ContractPrice  *int64     `db:"contract_price" json:"contract_price,omitempty"`
	Expires        *time.Time `db:"expires" json:"expires,omitempty"`
	Area           *float64   `db:"area" json:"area,omitempty"`
	FloorPrice     *int64     `db:"floor_price" json:"floor_price,omitempty"`
	CeilingPrice   *int64     `db:"ceiling_price" json:"ceiling_price,omitempty"`
	Score          *float64   `db:"score" json:"score,omitempty"`
	Category       *Category  `db:"category" json:"category,omitempty"`

	// Progress fields, owned by the workflow UI collaborator
	Collage          bool   `db:"collage" json:"collage"`
	ProfCollage      bool   `db:"prof_collage" json:"prof_collage"`
	Krisha           string `db:"krisha" json:"krisha"`
	KrishaUpdated    string `db:"krisha_updated" json:"krisha_updated"`
	Instagram        string `db:"instagram" json:"instagram"`
	InstagramUpdated string `db:"instagram_updated" json:"instagram_updated"`
	Tiktok           string `db:"tiktok" json:"tiktok"`
	TiktokUpdated    string `db:"tiktok_updated" json:"tiktok_updated"`
	Mailing          string `db:"mailing" json:"mailing"`
	MailingUpdated   string `db:"mailing_updated" json:"mailing_updated"`
	Shows            int    `db:"shows" json:"shows"`
	Analytics        bool   `db:"analytics" json:"analytics"`
	ProvideAnalytics bool   `db:"provide_analytics" json:"provide_analytics"`
	PushForPrice     bool   `db:"push_for_price" json:"push_for_price"`
	Status           string `db:"status" json:"status"`

	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	LastModifiedBy string    `db:"last_modified_by" json:"last_modified_by"`
}

// TableName returns the database table name
func (Property) TableName() string {
	return "properties"
}

// DealColumns enumerates the columns owned by the deals sheet and the CRM
// API. Updates from a sync are restricted to this set so progress columns
// survive resyncs.
func DealColumns() []string {
	return []string{
		"date_signed", "contract_number", "agent", "team_lead", "director",
		"client_name", "address", "complex", "contract_price", "expires",
		"area", "floor_price", "ceiling_price", "score", "category",
	}
}

// ToStorageRow serializes the deal-owned fields in storage column order,
// matching DealColumns.
func (p *Property) ToStorageRow() []any {
	return []any{
		p.DateSigned, p.ContractNumber, p.Agent, p.TeamLead, p.Director,
		p.ClientName, p.Address, p.Complex, p.ContractPrice, p.Expires,
		p.Area, p.FloorPrice, p.CeilingPrice, p.Score, p.Category,
	}
}

// ToExportRow serializes the record with the external sheet's field names.
// The workflow UI reads these keys; storage column names stay internal.
func (p *Property) ToExportRow() map[string]any {
	return map[string]any{
		"CRM ID":              p.CRMID,
		"Дата подписания":     p.DateSigned,
		"Номер договора":      p.ContractNumber,
		"МОП":                 p.Agent,
		"РОП":                 p.TeamLead,
		"ДД":                  p.Director,
		"Имя клиента и номер": p.ClientName,
		"Адрес":               p.Address,
		"ЖК":                  p.Complex,
		"Цена договора":       p.ContractPrice,
		"Истекает":            p.Expires,
		"category":            p.Category,
		"status":              p.Status,
	}
}
