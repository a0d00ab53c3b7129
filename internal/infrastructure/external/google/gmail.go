package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"

	"github.com/hadlocna/operations/internal/domain/entity"
)

const gmailUser = "me"

// maxPageSize is the largest page the messages.list endpoint returns
const maxPageSize = 500

// GmailSource implements port.MessageSource over the Gmail API
type GmailSource struct {
	endpoint string
	logger   *zap.Logger
}

// NewGmailSource creates a new Gmail message source. An empty endpoint uses the public API.
func NewGmailSource(endpoint string, logger *zap.Logger) *GmailSource {
	return &GmailSource{
		endpoint: endpoint,
		logger:   logger,
	}
}

func (g *GmailSource) service(ctx context.Context, cred *entity.Credential) (*gmail.Service, error) {
	opts, err := clientOptions(cred, g.endpoint)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

// Search returns up to maxResults message references matching query, following pagination
func (g *GmailSource) Search(ctx context.Context, cred *entity.Credential, query string, maxResults int64) ([]entity.MessageRef, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var refs []entity.MessageRef
	pageToken := ""
	for {
		pageSize := int64(maxPageSize)
		if maxResults > 0 {
			pageSize = min(maxResults-int64(len(refs)), pageSize)
		}

		call := svc.Users.Messages.List(gmailUser).Q(query).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range resp.Messages {
			refs = append(refs, entity.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
		}

		if resp.NextPageToken == "" || (maxResults > 0 && int64(len(refs)) >= maxResults) {
			break
		}
		pageToken = resp.NextPageToken
	}

	g.logger.Debug("Messages listed",
		zap.String("query", query),
		zap.Int("count", len(refs)))

	return refs, nil
}

// FetchFull retrieves a message with its full payload tree
func (g *GmailSource) FetchFull(ctx context.Context, cred *entity.Credential, messageID string) (*entity.MessagePayload, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get(gmailUser, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	payload := &entity.MessagePayload{ID: msg.Id}
	if msg.Payload == nil {
		return payload, nil
	}

	payload.From = header(msg.Payload.Headers, "From")
	payload.Subject = header(msg.Payload.Headers, "Subject")
	payload.Date = header(msg.Payload.Headers, "Date")

	root, err := convertPart(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", messageID, err)
	}
	payload.Root = root

	return payload, nil
}

// FetchAttachment downloads and decodes one attachment body
func (g *GmailSource) FetchAttachment(ctx context.Context, cred *entity.Credential, messageID, attachmentID string) ([]byte, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	body, err := svc.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	data, err := decodeBody(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment: %w", err)
	}

	g.logger.Debug("Attachment downloaded",
		zap.String("message_id", messageID),
		zap.Int("size", len(data)))

	return data, nil
}

// FetchSummary retrieves only the headers shown in the discovery preview
func (g *GmailSource) FetchSummary(ctx context.Context, cred *entity.Credential, messageID string) (*entity.MessageSummary, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get(gmailUser, messageID).
		Format("metadata").
		MetadataHeaders("From", "Subject", "Date").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	summary := &entity.MessageSummary{ID: msg.Id}
	if msg.Payload != nil {
		summary.From = header(msg.Payload.Headers, "From")
		summary.Subject = header(msg.Payload.Headers, "Subject")
		summary.Date = header(msg.Payload.Headers, "Date")
	}
	return summary, nil
}

func convertPart(p *gmail.MessagePart) (entity.MessagePart, error) {
	part := entity.MessagePart{
		PartID:   p.PartId,
		MimeType: p.MimeType,
		Filename: p.Filename,
	}

	if p.Body != nil {
		part.AttachmentID = p.Body.AttachmentId
		if p.Body.Data != "" {
			data, err := decodeBody(p.Body.Data)
			if err != nil {
				return part, fmt.Errorf("part %s: %w", p.PartId, err)
			}
			part.Data = data
		}
	}

	if len(p.Parts) > 0 {
		part.Parts = make([]entity.MessagePart, 0, len(p.Parts))
		for _, child := range p.Parts {
			if child == nil {
				continue
			}
			c, err := convertPart(child)
			if err != nil {
				return part, err
			}
			part.Parts = append(part.Parts, c)
		}
	}

	return part, nil
}

// decodeBody decodes Gmail's URL-safe base64, with or without padding
func decodeBody(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func header(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
