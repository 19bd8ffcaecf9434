package models

// Ministry is a church ministry or small group listed on the site.
type Ministry struct {
	Meta            `gorm:"embedded"`
	Slug            string `json:"slug" gorm:"column:slug"`
	Name            string `json:"name" gorm:"column:name"`
	Description     string `json:"description" gorm:"column:description"`
	Leader          string `json:"leader" gorm:"column:leader"`
	MeetingSchedule string `json:"meeting_schedule" gorm:"column:meeting_schedule"`
	ContactEmail    string `json:"contact_email" gorm:"column:contact_email"`
	ImageURL        string `json:"image_url" gorm:"column:image_url"`
	DisplayOrder    int    `json:"display_order" gorm:"column:display_order"`
	IsActive        bool   `json:"is_active" gorm:"column:is_active"`
}

func (m *Ministry) RowSlug() string { return m.Slug }

func (m *Ministry) PrepareInsert() {
	if m.Slug == "" {
		m.Slug = Slugify(m.Name)
	}
}

func (m *Ministry) Matches(opts ListOptions) bool {
	return matchBool(opts.Active, m.IsActive)
}
