package models

// Upload - метаданные загруженного файла (изображение карты),
// сам файл лежит в объектном хранилище
type Upload struct {
	BaseModel
	UserID      string `gorm:"not null;index" json:"userId"`
	FileName    string `gorm:"not null" json:"fileName"`
	Path        string `gorm:"not null" json:"-"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Usage       string `gorm:"default:'card'" json:"usage"`
}
