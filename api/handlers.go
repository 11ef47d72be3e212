package api

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/metric"

	"github.com/gin-gonic/gin"
)

const (
	// maxLimit is the max permitted items to be returned in paginated responses
	maxLimit uint = 2049

	// dfltLimit indicates the limit of returned items in paginated responses if the query param limit is not provided
	dfltLimit uint = 20
)

var (
	errNoRoute = "resource not found"
)

func successResponse(c *gin.Context, status int, message string, data ...interface{}) {
	response := gin.H{
		"message": message,
	}
	if len(data) > 0 {
		response["data"] = data[0]
	}
	c.JSON(status, response)
}

func errorResponse(c *gin.Context, status int, message string, err ...interface{}) {
	response := gin.H{
		"message": message,
	}
	if len(err) > 0 {
		switch e := err[0].(type) {
		case error:
			response["error"] = e.Error()
		default:
			response["error"] = e
		}
	}
	c.JSON(status, response)
}

func retBadReq(c *gin.Context, err error) {
	log.Warnw("HTTP API Bad request error", "err", err)
	errorResponse(c, http.StatusBadRequest, "Bad request", err)
}

// retErr answers with the status that corresponds to err
func retErr(c *gin.Context, message string, err error) {
	cause := common.Unwrap(err)
	switch cause {
	case sql.ErrNoRows, common.ErrNotFound:
		errorResponse(c, http.StatusNotFound, message, "item not found")
	case context.DeadlineExceeded:
		log.Warnw("HTTP API SQL request timeout", "err", err)
		errorResponse(c, http.StatusServiceUnavailable, message, "the node is under heavy pressure, please try again later")
	case common.ErrNotInitialized:
		errorResponse(c, http.StatusServiceUnavailable, message, cause)
	case common.ErrWrongBlockNumber, common.ErrAuctionNotStarted, common.ErrNumOverflow,
		common.ErrInvalidSignature:
		errorResponse(c, http.StatusBadRequest, message, cause)
	default:
		log.Warnw("HTTP API internal error", "err", err)
		errorResponse(c, http.StatusInternalServerError, message, cause)
	}
}

// requestsMetric counts the requests by route and status code
func requestsMetric() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		metric.Requests.WithLabelValues(path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func (a *API) noRoute(c *gin.Context) {
	errorResponse(c, http.StatusNotFound, errNoRoute)
}

func (a *API) health(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		successResponse(c, http.StatusOK, "ok", gin.H{
			"version":  version,
			"blockNum": a.chain.BlockNum(),
		})
	}
}
