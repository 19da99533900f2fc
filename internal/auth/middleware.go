package auth

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	staffIDKey   contextKey = "staff_id"
	stationIDKey contextKey = "station_id"
)

// StaffAuthMiddleware validates the Bearer JWT issued by the staff login and
// puts the staff and station IDs on the request context.
func StaffAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		staffID, ok := claims["staff_id"].(float64)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		stationID, _ := claims["station_id"].(float64)

		ctx := context.WithValue(r.Context(), staffIDKey, int(staffID))
		ctx = context.WithValue(ctx, stationIDKey, int(stationID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StaffID returns the authenticated staff ID, 0 when unauthenticated.
func StaffID(ctx context.Context) int {
	id, _ := ctx.Value(staffIDKey).(int)
	return id
}

// StationID returns the staff member's station, 0 when unauthenticated.
func StationID(ctx context.Context) int {
	id, _ := ctx.Value(stationIDKey).(int)
	return id
}
