package request

type CreateLoanRequest struct {
	BookID   string `json:"bookId" binding:"required"`
	UserID   string `json:"userId" binding:"required"`
	UserName string `json:"userName" binding:"required"`
}
