package reconcile

import (
	"hostdrift/internal/domain"
)

// Classify assigns a severity to one resolution result.
// Missing on either side wins over any verdict; otherwise one Mismatch makes
// the host a Warning. Incomparable verdicts never raise severity.
func Classify(result domain.MatchResult, verdicts []domain.AttributeVerdict) domain.HostReport {
	report := domain.HostReport{
		Identity: result.Identity(),
		Key:      result.Key,
		Match:    result.Kind,
		Verdicts: verdicts,
		Live:     result.Host,
		CMDB:     result.Device,
	}
	if report.Verdicts == nil {
		report.Verdicts = []domain.AttributeVerdict{}
	}

	switch result.Kind {
	case domain.MatchKindUnfetched:
		report.Severity = domain.SeveritySkipped
		return report
	case domain.MatchKindMissingInCMDB, domain.MatchKindMissingInLive:
		report.Severity = domain.SeverityMissing
		return report
	}

	report.Severity = domain.SeverityOK
	for _, v := range verdicts {
		if v.IsMismatch() {
			report.Severity = domain.SeverityWarning
			break
		}
	}
	return report
}

// Aggregate derives the run status: clean only when every compared host is OK.
// Skipped hosts do not count either way.
func Aggregate(reports []domain.HostReport) domain.RunStatus {
	for _, r := range reports {
		if r.Severity == domain.SeverityWarning || r.Severity == domain.SeverityMissing {
			return domain.StatusDrift
		}
	}
	return domain.StatusClean
}

// Summarize counts hosts per outcome
func Summarize(reports []domain.HostReport, liveHosts, cmdbDevices int) domain.Summary {
	s := domain.Summary{
		LiveHosts:   liveHosts,
		CMDBDevices: cmdbDevices,
	}
	for _, r := range reports {
		switch {
		case r.Match == domain.MatchKindUnfetched:
			s.Unfetched++
		case r.Match == domain.MatchKindMissingInCMDB:
			s.MissingInCMDB++
		case r.Match == domain.MatchKindMissingInLive:
			s.MissingInLive++
		case r.Severity == domain.SeverityWarning:
			s.Warning++
		default:
			s.OK++
		}
	}
	return s
}
