package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/services"
)

func (app *application) listTaxReportsHandler(c *gin.Context) {
	reports, err := models.ListTaxReports(app.db, c.Request.Context(), app.currentUserId(c))
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

type generateTaxReportRequest struct {
	Year    int `json:"year" binding:"required"`
	Quarter int `json:"quarter" binding:"required"`
}

func (app *application) generateTaxReportHandler(c *gin.Context) {
	var req generateTaxReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	report, err := models.GenerateTaxReport(app.db, c.Request.Context(), app.currentUserId(c),
		req.Year, req.Quarter, config.TaxEstimateRate())
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (app *application) finalizeTaxReportHandler(c *gin.Context) {
	year, quarter, ok := parsePeriod(c)
	if !ok {
		return
	}
	report, err := models.FinalizeTaxReport(app.db, c.Request.Context(), app.currentUserId(c), year, quarter)
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// exportTaxReportHandler streams the quarter's workbook: summary figures plus
// the transactions behind them.
func (app *application) exportTaxReportHandler(c *gin.Context) {
	year, quarter, ok := parsePeriod(c)
	if !ok {
		return
	}
	report, err := models.GetTaxReport(app.db, c.Request.Context(), app.currentUserId(c), year, quarter)
	if err != nil {
		app.respondError(c, err)
		return
	}
	start, end, err := models.QuarterWindow(year, quarter)
	if err != nil {
		app.respondError(c, err)
		return
	}
	transactions, err := models.ListTransactions(app.db, c.Request.Context(), app.currentUserId(c), start, end)
	if err != nil {
		app.respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=tax-report-%d-Q%d.xlsx", year, quarter))
	if err := services.WriteTaxReportWorkbook(c.Writer, report, transactions); err != nil {
		_ = c.Error(err)
	}
}

func parsePeriod(c *gin.Context) (int, int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return 0, 0, false
	}
	quarter, err := strconv.Atoi(c.Param("quarter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quarter"})
		return 0, 0, false
	}
	return year, quarter, true
}
