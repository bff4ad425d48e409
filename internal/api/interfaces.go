package api

import "github.com/persistorai/changelog/internal/domain"

// ChangeSetRepository defines the change set reads used by ChangeSetHandler.
type ChangeSetRepository = domain.ChangeSetService

// HistoryRepository defines the object history reads used by HistoryHandler.
type HistoryRepository = domain.HistoryService

// RecordRepository defines delta ingestion used by ChangeSetHandler.
type RecordRepository = domain.RecordService
