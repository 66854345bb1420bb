package config

import "os"

// ApplyDefaults sets default values for any zero values in cfg.
// The server secret falls back to the DOCQUERY_SECRET environment variable.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5602
	}
	if cfg.Server.Secret == "" {
		cfg.Server.Secret = os.Getenv("DOCQUERY_SECRET")
	}
	if cfg.Server.Secret == "" {
		cfg.Server.Secret = "password"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "./saved_index"
	}
	if cfg.Storage.PreviewsPath == "" {
		cfg.Storage.PreviewsPath = "./stored_documents.json"
	}
	if cfg.Storage.ArchivePath == "" {
		cfg.Storage.ArchivePath = "./documents.db"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 4096
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2"
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 512
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 2
	}
	if cfg.Index.KeywordWeight == 0 && cfg.Index.SemanticWeight == 0 {
		cfg.Index.KeywordWeight = 0.5
		cfg.Index.SemanticWeight = 0.5
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".rtf", ".xlsx"}
	}
}
