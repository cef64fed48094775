package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jszwec/csvutil"

	"github.com/02loveslollipop/nuclear-outages/services/api/cache"
	"github.com/02loveslollipop/nuclear-outages/services/api/query"
)

type dataQuery struct {
	Page       int    `form:"page,default=1" binding:"min=1"`
	Limit      int    `form:"limit,default=100" binding:"min=1,max=1000"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	FacilityID string `form:"facility_id"`
	Generator  string `form:"generator"`
	PlantKey   *int64 `form:"plant_key" binding:"omitempty,min=1"`
	PlantName  string `form:"plant_name"`
	Format     string `form:"format" binding:"omitempty,oneof=json csv"`
}

func (q dataQuery) filter() query.Filter {
	return query.Filter{
		FacilityID: q.FacilityID,
		Generator:  q.Generator,
		PlantKey:   q.PlantKey,
		PlantName:  q.PlantName,
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
	}
}

func (s *Server) handleData(c *gin.Context) {
	var q dataQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := s.cache.View()
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows, total, err := query.Run(view, q.filter(), q.Page, q.Limit)
	if err != nil {
		var verr *query.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if q.Format == "csv" {
		body, err := encodeCSV(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":  q.Page,
		"limit": q.Limit,
		"total": total,
		"data":  rows,
	})
}

func encodeCSV(rows []cache.OutageRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false
	if err := enc.EncodeHeader(cache.OutageRow{}); err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if err := enc.Encode(rows); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
