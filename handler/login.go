package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"bus-tracker/db"
	"bus-tracker/utils"
)

const userIDKey = "user_id"

// Claims is the driver token payload.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	BusID    *uint  `json:"bus_id"`
	Message  string `json:"message"`
}

// Login checks driver credentials and issues a token. A driver starting a
// shift gets a clean slate: the previous positions of their bus are
// dropped.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.store.GetUserByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		storeError(c, "user", err)
		return
	}
	if user == nil || !utils.CheckPassword(user.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := h.issueToken(user.ID, user.Username)
	if err != nil {
		log.WithError(err).Error("failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	resp := LoginResponse{Token: token, Username: user.Username, Message: "logged in"}
	if busID, ok := h.clearDriverBus(c, user.ID); ok {
		resp.BusID = &busID
	}
	c.JSON(http.StatusOK, resp)
}

// Logout drops the positions of the driver's bus so it leaves the public
// map right away.
func (h *Handler) Logout(c *gin.Context) {
	h.clearDriverBus(c, c.GetUint(userIDKey))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// clearDriverBus deletes the position history of the bus driven by userID.
// Failures are logged; they never block the session change.
func (h *Handler) clearDriverBus(c *gin.Context, userID uint) (uint, bool) {
	ctx := c.Request.Context()
	bus, err := h.store.GetBusByDriver(ctx, userID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).WithField("user_id", userID).Error("failed to look up driver bus")
		}
		return 0, false
	}
	n, err := h.store.ClearPositions(ctx, bus.ID)
	if err != nil {
		log.WithError(err).WithField("bus_id", bus.ID).Error("failed to clear positions")
		return bus.ID, true
	}
	log.WithFields(log.Fields{"bus_id": bus.ID, "deleted": n}).Info("cleared bus positions")
	return bus.ID, true
}

func (h *Handler) issueToken(userID uint, username string) (string, error) {
	now := h.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.opts.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "bus-tracker",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.opts.JWTSecret)
}

// AuthMiddleware rejects requests without a valid bearer token.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return h.opts.JWTSecret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(h.now),
			jwt.WithLeeway(5*time.Second),
		)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}
