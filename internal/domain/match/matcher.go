// Package match computes translator eligibility for bookings. All functions
// are pure: the same inputs always yield the same answer and nothing is
// mutated, so the matcher can run per-candidate on acceptance checks and in
// bulk when fanning out new-booking notifications.
package match

import (
	"github.com/nordtolk/booking-api/internal/domain/model"
)

// RequiredTranslatorType maps a booking type to the translator type that may
// serve it. Unknown booking types fall back to volunteer-eligible.
func RequiredTranslatorType(t model.JobType) model.TranslatorType {
	switch t {
	case model.JobTypePaid:
		return model.TranslatorTypeProfessional
	case model.JobTypeRWS:
		return model.TranslatorTypeRWS
	default:
		return model.TranslatorTypeVolunteer
	}
}

// EligibleLevels maps a certification requirement to the set of translator
// levels that satisfy it. A nil requirement admits every level.
//
// "both" maps to the certified union; the layman set is only reachable via
// "normal".
func EligibleLevels(c *model.Certified) []model.TranslatorLevel {
	if c == nil {
		return model.AllLevels()
	}

	switch *c {
	case model.CertifiedYes, model.CertifiedBoth:
		return []model.TranslatorLevel{
			model.LevelCertified,
			model.LevelCertifiedLaw,
			model.LevelCertifiedHealth,
		}
	case model.CertifiedLaw, model.CertifiedNLaw:
		return []model.TranslatorLevel{model.LevelCertifiedLaw}
	case model.CertifiedHealth, model.CertifiedNHealth:
		return []model.TranslatorLevel{model.LevelCertifiedHealth}
	case model.CertifiedNormal:
		return []model.TranslatorLevel{model.LevelLayman, model.LevelReadCourses}
	default:
		return nil
	}
}

// Eligible runs the full eligibility pipeline for one candidate translator.
// customerTowns are the towns of the booking's customer; they only matter
// for physical-only bookings.
func Eligible(job *model.Job, customerTowns []string, p *model.TranslatorProfile) bool {
	if p.Type != RequiredTranslatorType(job.JobType) {
		return false
	}

	if !p.HasLevel(EligibleLevels(job.Certified)) {
		return false
	}

	if !p.HasLanguage(job.FromLanguageID) {
		return false
	}

	if job.Gender != nil && (p.Gender == nil || *p.Gender != *job.Gender) {
		return false
	}

	if p.BlacklistedByCustomer(job.CustomerID) {
		return false
	}

	if job.PhysicalOnly() && !p.SharesTown(customerTowns) {
		return false
	}

	if job.SpecificTranslatorID != nil && *job.SpecificTranslatorID != p.ID {
		return false
	}

	return true
}

// EligibleSet filters a universe of profiles down to the ids eligible for
// the booking. Order of the result is unspecified.
func EligibleSet(job *model.Job, customerTowns []string, profiles []*model.TranslatorProfile) []string {
	var ids []string
	for _, p := range profiles {
		if Eligible(job, customerTowns, p) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// PotentialJobs is the reverse bulk query: the pending bookings a translator
// may see and accept. townsByCustomer maps customer id to their towns.
func PotentialJobs(p *model.TranslatorProfile, jobs []*model.Job, townsByCustomer map[string][]string) []*model.Job {
	var out []*model.Job
	for _, job := range jobs {
		if job.Status != model.JobStatusPending {
			continue
		}
		if Eligible(job, townsByCustomer[job.CustomerID], p) {
			out = append(out, job)
		}
	}
	return out
}
