package postgres

import (
	"odontolegal/internal/domain/audit"
	"odontolegal/internal/domain/cases"
	"odontolegal/internal/domain/dentalrecords"
	"odontolegal/internal/domain/evidence"
)

var (
	_ cases.Repository              = (*CasesRepo)(nil)
	_ evidence.Repository           = (*EvidenceRepo)(nil)
	_ dentalrecords.Repository      = (*DentalRecordsRepo)(nil)
	_ dentalrecords.MatchRepository = (*MatchesRepo)(nil)
	_ audit.Repository              = (*HistoryRepo)(nil)
)
