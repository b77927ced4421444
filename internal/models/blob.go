package models

import "time"

// Bucket — именованное хранилище бинарных объектов.
type Bucket string

const (
	BucketArticle      Bucket = "article"
	BucketFreeArticles Bucket = "freearticles"
	BucketSupport      Bucket = "support"
	BucketUploads      Bucket = "uploads"
)

// Buckets — порядок поиска при fallback.
var Buckets = []Bucket{BucketArticle, BucketFreeArticles, BucketSupport, BucketUploads}

// Valid сообщает, известен ли бакет.
func (b Bucket) Valid() bool {
	for _, known := range Buckets {
		if b == known {
			return true
		}
	}
	return false
}

// Blob — бинарный объект с метаданными.
type Blob struct {
	Bucket      Bucket    `json:"bucket"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
