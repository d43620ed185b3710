// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// Operation names, used as metric labels and log fields.
const (
	OperationInit     = "init"
	OperationRegister = "register"
	OperationLogin    = "login"
	OperationRefresh  = "refresh"
	OperationChange   = "change"
)

// Input limits checked at the HTTP boundary.
const (
	NameMinLength     = 3
	NameMaxLength     = 64
	PasswordMinLength = 6
	PasswordMaxBytes  = 72 // bcrypt ignores anything longer.
	MetaMaxKeys       = 32
)
