package models

import (
	"github.com/Pland4r/project-ai/internal/analysis"
	"github.com/Pland4r/project-ai/internal/service"
)

// UploadResponse is returned after successful file upload
type UploadResponse struct {
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
}

// AnalyzeRequest is the body of /analyze
type AnalyzeRequest struct {
	FilePath string `json:"file_path"`
}

// DBAnalyzeRequest is the body of /api/db/analyze
type DBAnalyzeRequest struct {
	DSN   string `json:"dsn"`
	Table string `json:"table"`
	Limit int    `json:"limit"`
}

// AnalyzeResponse is returned by every analyze endpoint
type AnalyzeResponse struct {
	Schema            analysis.Variant             `json:"schema"`
	Metrics           analysis.Snapshot            `json:"metrics"`
	AISummary         string                       `json:"ai_summary"`
	VisualizationData analysis.Visualization       `json:"visualizationData"`
	CleaningReport    analysis.CleaningReport      `json:"cleaning_report"`
	DataQuality       []service.DataQualityProfile `json:"data_quality"`
	Warnings          []string                     `json:"warnings"`
	Trend             *service.TrendReport         `json:"trend,omitempty"`
}

// NewAnalyzeResponse assembles the payload from a pipeline result
func NewAnalyzeResponse(res *analysis.Result, summary string, quality []service.DataQualityProfile, trend *service.TrendReport) AnalyzeResponse {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	if quality == nil {
		quality = []service.DataQualityProfile{}
	}
	return AnalyzeResponse{
		Schema:            res.Variant,
		Metrics:           res.Snapshot,
		AISummary:         summary,
		VisualizationData: res.Visualization,
		CleaningReport:    res.Report,
		DataQuality:       quality,
		Warnings:          warnings,
		Trend:             trend,
	}
}

// ErrorResponse is returned for failed requests
type ErrorResponse struct {
	Error string   `json:"error"`
	Trace []string `json:"trace,omitempty"`
}
