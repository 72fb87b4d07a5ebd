package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims is the caller identity carried by the session token.
type UserClaims struct {
	UserID string
	Email  string
	Name   string
}

func getHeader(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func sessionToken(req events.APIGatewayProxyRequest) string {
	// 1. Authorization: Bearer <token>
	if auth := getHeader(req, "Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// 2. Cookie: session_token=xxx; ...
	for _, part := range strings.Split(getHeader(req, "Cookie"), ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "session_token=") {
			return strings.TrimPrefix(part, "session_token=")
		}
	}
	return ""
}

// GetUserClaims verifies the HS256 session token from the Authorization
// header or session cookie and returns its identity claims.
func GetUserClaims(req events.APIGatewayProxyRequest, jwtSecret string) (*UserClaims, error) {
	tokenString := sessionToken(req)
	if tokenString == "" {
		return nil, fmt.Errorf("no authorization token found")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return &UserClaims{UserID: sub, Email: email, Name: name}, nil
}

// GetUserID extracts the user ID from the session token.
func GetUserID(req events.APIGatewayProxyRequest, jwtSecret string) (string, error) {
	c, err := GetUserClaims(req, jwtSecret)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func textResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status, Body: body}
}
