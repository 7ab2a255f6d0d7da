package dto

// DateRangeQuery binds the inclusive date range of a range report.
type DateRangeQuery struct {
	StartDate string `form:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate   string `form:"endDate" binding:"required,datetime=2006-01-02"`
}

// MonthQuery binds the month of a monthly report.
type MonthQuery struct {
	Year  int `form:"year" binding:"required,min=2000,max=2100"`
	Month int `form:"month" binding:"required,min=1,max=12"`
}

// ListQuery binds the optional limit of list endpoints.
type ListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}
