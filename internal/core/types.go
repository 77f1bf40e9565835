package core

import "metacore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Table              = domain.Table
	Column             = domain.Column
	Modifier           = domain.Modifier
	Pool               = domain.Pool
	PoolColumn         = domain.PoolColumn
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
	RulesEngine        = domain.RulesEngine
	Rule               = domain.Rule
)

const (
	EntityTable      = domain.EntityTable
	EntityColumn     = domain.EntityColumn
	EntityPool       = domain.EntityPool
	EntityPermission = domain.EntityPermission
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
