// рекомендации оператору по тегам проблем
package sourcehealth

import "dropalert/internal/domain/models"

// SuggestRemediation возвращает шаги для устранения проблемы данного типа
func SuggestRemediation(tag models.IssueTag) []string {
	switch tag {
	case models.IssueRateLimiting:
		return []string{
			"increase request delay for this source",
			"reduce polling frequency",
			"check if request volume grew after adding keywords",
		}
	case models.IssueBlocking:
		return []string{
			"rotate egress IP or proxy pool",
			"review request headers against a real browser session",
			"back off the source for several hours",
		}
	case models.IssueSiteChanges:
		return []string{
			"inspect the source page layout manually",
			"update parse strategy order in the source config",
			"check whether the structured data blocks disappeared",
		}
	case models.IssueParsing:
		return []string{
			"capture a failing response body for inspection",
			"verify the response is not an interstitial or consent page",
		}
	case models.IssueNetwork:
		return []string{
			"check DNS resolution and egress connectivity",
			"verify request timeout is adequate for this source",
		}
	}
	return nil
}
