package connectors

import (
	"strings"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// sqlStatement is opaque SQL handed to the driver's parameterless path
type sqlStatement struct {
	text string
}

func (s sqlStatement) String() string {
	return s.text
}

func prepareSQL(engine domain.EngineType, queryText string) (interfaces.Statement, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, gwerrors.New(gwerrors.KindInvalidInput, string(engine), "query text cannot be empty", nil)
	}
	return sqlStatement{text: queryText}, nil
}

func queryFailed(engine domain.EngineType, message string, err error) error {
	return gwerrors.New(gwerrors.KindQueryFailed, string(engine), message, err)
}

func connectionFailed(engine domain.EngineType, message string, err error) error {
	return gwerrors.New(gwerrors.KindConnectionFailed, string(engine), message, err)
}
