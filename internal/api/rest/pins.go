package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kay54068/halremote/internal/hal"
)

// PinView is the JSON shape of a pin in API responses.
type PinView struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Direction string      `json:"direction"`
	Enabled   bool        `json:"enabled"`
	Value     interface{} `json:"value"`
	Synced    bool        `json:"synced"`
	Handle    *uint32     `json:"handle,omitempty"`
}

func pinView(p *hal.Pin) PinView {
	view := PinView{
		Name:      p.Name(),
		Type:      string(p.Type()),
		Direction: string(p.Direction()),
		Enabled:   p.Enabled(),
		Value:     p.Value(),
		Synced:    p.Synced(),
	}
	if handle, ok := p.Handle(); ok {
		view.Handle = &handle
	}
	return view
}

// GET /api/v1/pins
func (s *Server) listPins(c *gin.Context) {
	pins := s.container.Pins()
	views := make([]PinView, 0, len(pins))
	for _, p := range pins {
		views = append(views, pinView(p))
	}
	c.JSON(http.StatusOK, gin.H{"pins": views})
}

// GET /api/v1/pins/:name
func (s *Server) getPin(c *gin.Context) {
	pin := s.findPin(c.Param("name"))
	if pin == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pin not found"})
		return
	}
	c.JSON(http.StatusOK, pinView(pin))
}

// POST /api/v1/pins/:name/set
func (s *Server) setPin(c *gin.Context) {
	pin := s.findPin(c.Param("name"))
	if pin == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pin not found"})
		return
	}

	var req struct {
		Value interface{} `json:"value" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := pin.SetValue(req.Value); err != nil {
		s.logger.Warn("Pin write rejected",
			zap.String("pin", pin.Name()),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, pinView(pin))
}

func (s *Server) findPin(name string) *hal.Pin {
	for _, p := range s.container.Pins() {
		if p.Name() == name {
			return p
		}
	}
	return nil
}
