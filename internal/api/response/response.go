package response

import (
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/garden-fi/assistant-fulfillment/internal/api/webhook"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/session"
)

// DefaultHeaders returns the default headers for all responses
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
	}
}

// Webhook serializes a fulfillment payload. The platform expects 200
// even for conversational failures; transport-level status codes are
// reserved for requests we reject outright.
func Webhook(payload webhook.Response) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		// Fallback for JSON marshaling errors
		return SpokenError("")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    DefaultHeaders(),
	}
}

// SpokenError ends the conversation with an apology. Used when a payload
// cannot even be built; handler-level failures speak through Webhook.
func SpokenError(sessionID string) events.APIGatewayProxyResponse {
	payload := webhook.NewResponse(sessionID)
	payload.AddSpeech("Oops something went wrong. Please try again.")
	payload.SetNextScene(session.SceneEndConversation)

	body, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"prompt":{"firstSimple":{"speech":"Oops something went wrong. Please try again."}}}`,
			Headers:    DefaultHeaders(),
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    DefaultHeaders(),
	}
}

// BadRequest rejects a request the platform should never have sent.
func BadRequest(message string) events.APIGatewayProxyResponse {
	return errorResponse(http.StatusBadRequest, "INVALID_REQUEST", message)
}

// Unauthorized rejects a request that failed caller verification.
func Unauthorized(message string) events.APIGatewayProxyResponse {
	return errorResponse(http.StatusUnauthorized, "AUTHENTICATION_ERROR", message)
}

// NotFound rejects a request for an unknown endpoint.
func NotFound(message string) events.APIGatewayProxyResponse {
	return errorResponse(http.StatusNotFound, "NOT_FOUND", message)
}

func errorResponse(statusCode int, code, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{
		"error":             code,
		"error_description": message,
	})
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       string(body),
		Headers:    DefaultHeaders(),
	}
}
