package auth

import (
	"errors"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

func domainCode(err error) string {
	if err == nil {
		return ""
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "non_domain_error"
}

func isNotFound(err error) bool {
	return domain.KindOf(err) == domain.KindNotFound
}
