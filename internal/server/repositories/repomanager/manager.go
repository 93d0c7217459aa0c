package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/payslips/internal/dbx"
	"github.com/dmitrijs2005/payslips/internal/server/repositories/payslips"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Payslips(db dbx.DBTX) payslips.Repository
}
