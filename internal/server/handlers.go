package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rustyeddy/marketsim/broker"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/market/indicators"
	"github.com/rustyeddy/marketsim/session"
	"go.uber.org/zap"
)

type OrderRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Side     string `json:"side" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, broker.ErrNoPosition):
		return http.StatusConflict
	case errors.Is(err, session.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) listInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, s.sess.Instruments())
}

func (s *Server) getInstrument(c *gin.Context) {
	inst, err := s.sess.Instrument(c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// getCandles serves ?tf=5s|15s|30s|1m|5m, defaulting to 1m.
func (s *Server) getCandles(c *gin.Context) {
	tf, err := market.ParseTimeframe(c.DefaultQuery("tf", market.M1.String()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	candles, err := s.sess.Candles(c.Param("symbol"), tf)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    c.Param("symbol"),
		"timeframe": tf.String(),
		"candles":   candles,
	})
}

// getIndicator serves ?name=ema|adx&period=N&tf=..., computed over the
// symbol's candle history.
func (s *Server) getIndicator(c *gin.Context) {
	tf, err := market.ParseTimeframe(c.DefaultQuery("tf", market.M1.String()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period, err := strconv.Atoi(c.DefaultQuery("period", "14"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be an integer"})
		return
	}
	ind, err := indicators.New(c.DefaultQuery("name", "ema"), period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := s.sess.Candles(c.Param("symbol"), tf)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    c.Param("symbol"),
		"timeframe": tf.String(),
		"indicator": ind.Name(),
		"warmup":    ind.Warmup(),
		"points":    indicators.Series(ind, candles),
	})
}

func (s *Server) getBook(c *gin.Context) {
	book, err := s.sess.Book(c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// getAccount reports the account; ?symbol= adds that symbol's order limits.
func (s *Server) getAccount(c *gin.Context) {
	sym := c.Query("symbol")
	if sym != "" {
		if _, err := s.sess.Instrument(sym); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, s.sess.Account(sym))
}

func (s *Server) listPositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.sess.Positions())
}

func (s *Server) getMarkers(c *gin.Context) {
	markers, err := s.sess.Markers(c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, markers)
}

func (s *Server) submitOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, err := market.ParseSide(req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fill, err := s.sess.SubmitOrder(c.Request.Context(), req.Symbol, side, req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, fill)
}

func (s *Server) closePosition(c *gin.Context) {
	closed, err := s.sess.ClosePosition(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, closed)
}

func (s *Server) deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	if err := s.sess.Deposit(c.Request.Context(), req.Amount); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.sess.Account(""))
}
