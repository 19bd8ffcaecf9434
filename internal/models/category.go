package models

// Category groups blog posts, events or sermons. Slugs are unique per table.
type Category struct {
	Meta         `gorm:"embedded"`
	Name         string `json:"name" gorm:"column:name"`
	Slug         string `json:"slug" gorm:"column:slug"`
	Color        string `json:"color" gorm:"column:color"`
	Description  string `json:"description" gorm:"column:description"`
	DisplayOrder int    `json:"display_order" gorm:"column:display_order"`
	IsActive     bool   `json:"is_active" gorm:"column:is_active"`
}

func (c *Category) RowSlug() string { return c.Slug }

func (c *Category) PrepareInsert() {
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Color == "" {
		c.Color = "#6b7280"
	}
}

func (c *Category) Matches(opts ListOptions) bool {
	return matchBool(opts.Active, c.IsActive)
}
