package domain

type CtxKey string

const (
	KeyUserID    CtxKey = "UserID"
	KeyUserEmail CtxKey = "Email"
	KeyToken     CtxKey = "Token"
	KeyAuthVia   CtxKey = "AuthVia"
)
