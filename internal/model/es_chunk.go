package model

// EsChunk 代表 Elasticsearch 知识库索引中的一个文档。
type EsChunk struct {
	ChunkKey    string    `json:"chunk_key"` // "{file_md5}_{chunk_id}"
	FileMD5     string    `json:"file_md5"`
	ChunkID     int       `json:"chunk_id"`
	TextContent string    `json:"text_content"`
	Metadata    string    `json:"metadata"`
	Vector      []float32 `json:"vector"`
}

// ChunkHit 是一次向量近邻查询的单条命中，Distance 为 L2 距离。
type ChunkHit struct {
	Content  string
	Metadata string
	Distance float64
}
