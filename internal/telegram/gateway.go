package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/rlagura/transferbot/internal/domain"
	"github.com/rlagura/transferbot/internal/service"
)

// markdown is the legacy Markdown parse mode; card renderings escape handles
// for it.
var markdown = models.ParseMode("Markdown")

// botAPI is the slice of the bot client the gateway uses, narrowed so handlers
// can be exercised against a fake in tests. *bot.Bot satisfies it.
type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	EditMessageCaption(ctx context.Context, params *bot.EditMessageCaptionParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetChatAdministrators(ctx context.Context, params *bot.GetChatAdministratorsParams) ([]models.ChatMember, error)
}

// Gateway adapts Telegram updates onto the claim service and renders its
// results back into the chat. Failures at this boundary degrade to a logged
// error plus a best-effort notice; they never terminate the process.
type Gateway struct {
	api    botAPI
	chatID int64
	svc    *service.ClaimService
	logger *slog.Logger
}

// New constructs a Gateway over the given bot client.
func New(api *bot.Bot, chatID int64, svc *service.ClaimService, logger *slog.Logger) *Gateway {
	return &Gateway{
		api:    api,
		chatID: chatID,
		svc:    svc,
		logger: logger,
	}
}

// Attach registers the gateway as the handler for every incoming update.
func (g *Gateway) Attach(b *bot.Bot) {
	b.RegisterHandlerMatchFunc(func(*models.Update) bool { return true }, g.Handle)
}

// Handle routes one update. It satisfies bot.HandlerFunc.
func (g *Gateway) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	logger := g.logger.With("correlation_id", uuid.NewString(), "update_id", update.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling update", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		g.handleCallback(ctx, logger, update.CallbackQuery)
	case update.Message != nil:
		g.handleMessage(ctx, logger, update.Message)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, logger *slog.Logger, msg *models.Message) {
	if msg.Chat.ID != g.chatID || msg.From == nil {
		return
	}

	if cmd, arg, ok := parseCommand(msg.Text); ok && cmd == "transfer" {
		g.handleTransfer(ctx, logger, msg, arg)
		return
	}
	if msg.Text != "" {
		g.handleReason(ctx, logger, msg)
	}
}

func (g *Gateway) handleTransfer(ctx context.Context, logger *slog.Logger, msg *models.Message, arg string) {
	in := service.CreateClaimInput{
		FromAgent:      arg,
		Claimant:       displayHandle(msg.From),
		ClaimantUserID: msg.From.ID,
		ThreadRef:      msg.MessageThreadID,
	}
	if reply := msg.ReplyToMessage; reply != nil {
		in.EvidenceRef = domain.MessageRef(reply.ID)
		in.EvidenceKind = evidenceKind(reply)
	}

	claim, card, err := g.svc.CreateClaim(ctx, in)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			g.reply(ctx, logger, msg.ID, verr.Reason)
			return
		}
		logger.Error("create claim failed", "error", err)
		g.reply(ctx, logger, msg.ID, "An error occurred while processing the transfer claim.")
		return
	}

	sent, err := g.postCard(ctx, msg.ReplyToMessage, claim, card)
	if err != nil {
		logger.Error("post claim card failed", "claim_id", claim.ID, "error", err)
		g.reply(ctx, logger, msg.ID, "An error occurred while processing the transfer claim.")
		return
	}
	if err := g.svc.AttachCardRef(claim.ID, domain.MessageRef(sent.ID)); err != nil {
		logger.Error("attach card ref failed", "claim_id", claim.ID, "error", err)
	}
}

// postCard sends the claim card as a photo caption when the evidence is a
// photo, and as a plain message otherwise, always replying to the evidence.
func (g *Gateway) postCard(ctx context.Context, evidence *models.Message, claim domain.Claim, card service.Card) (*models.Message, error) {
	replyTo := &models.ReplyParameters{MessageID: int(claim.SourceMessageRef)}
	keyboard := inlineKeyboard(card.Actions)

	if claim.EvidenceKind == domain.EvidencePhoto && evidence != nil && len(evidence.Photo) > 0 {
		largest := evidence.Photo[len(evidence.Photo)-1]
		return g.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          g.chatID,
			Photo:           &models.InputFileString{Data: largest.FileID},
			Caption:         card.Text,
			ParseMode:       markdown,
			ReplyParameters: replyTo,
			ReplyMarkup:     keyboard,
		})
	}

	return g.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          g.chatID,
		Text:            card.Text,
		ParseMode:       markdown,
		ReplyParameters: replyTo,
		ReplyMarkup:     keyboard,
	})
}

func (g *Gateway) handleCallback(ctx context.Context, logger *slog.Logger, cq *models.CallbackQuery) {
	action, claimID, ok := parseAction(cq.Data)
	if !ok {
		g.answer(ctx, logger, cq.ID, "")
		return
	}

	card := cq.Message.Message
	if card == nil || card.Chat.ID != g.chatID {
		g.answer(ctx, logger, cq.ID, "")
		return
	}

	actor := service.Actor{UserID: cq.From.ID, Handle: displayHandle(&cq.From)}
	logger = logger.With("claim_id", claimID, "actor", actor.Handle)

	approvers, err := g.approverSet(ctx)
	if err != nil {
		logger.Error("fetch chat administrators failed", "error", err)
		g.answer(ctx, logger, cq.ID, "An error occurred, please try again.")
		return
	}

	switch action {
	case "approve":
		g.approve(ctx, logger, cq, claimID, actor, approvers)
	case "reject":
		g.beginReject(ctx, logger, cq, claimID, actor, approvers)
	}
}

func (g *Gateway) approve(ctx context.Context, logger *slog.Logger, cq *models.CallbackQuery, claimID string, actor service.Actor, approvers service.ApproverSet) {
	result, err := g.svc.Approve(ctx, claimID, actor, approvers)
	switch {
	case errors.Is(err, domain.ErrClaimNotFound):
		g.answer(ctx, logger, cq.ID, "This claim has already been processed.")
		return
	case errors.Is(err, domain.ErrUnauthorized):
		g.answer(ctx, logger, cq.ID, "Only leaders can action this.")
		return
	case err != nil:
		logger.Error("approve failed", "error", err)
		g.answer(ctx, logger, cq.ID, "An error occurred while approving.")
		return
	}

	g.editCard(ctx, logger, result.Claim, result.Card)
	if result.LedgerErr != nil {
		// The decision stands; only the ledger write failed.
		g.answer(ctx, logger, cq.ID, "Approved, but recording to the ledger failed.")
		return
	}
	g.answer(ctx, logger, cq.ID, "Transfer approved successfully!")
}

func (g *Gateway) beginReject(ctx context.Context, logger *slog.Logger, cq *models.CallbackQuery, claimID string, actor service.Actor, approvers service.ApproverSet) {
	prompt, err := g.svc.BeginReject(ctx, claimID, actor, approvers)
	switch {
	case errors.Is(err, domain.ErrClaimNotFound):
		g.answer(ctx, logger, cq.ID, "This claim has already been processed.")
		return
	case errors.Is(err, domain.ErrUnauthorized):
		g.answer(ctx, logger, cq.ID, "Only leaders can action this.")
		return
	case err != nil:
		logger.Error("begin reject failed", "error", err)
		g.answer(ctx, logger, cq.ID, "An error occurred while rejecting.")
		return
	}

	if _, err := g.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          g.chatID,
		Text:            prompt.Text,
		ReplyParameters: &models.ReplyParameters{MessageID: int(prompt.CardRef)},
	}); err != nil {
		logger.Error("send rejection prompt failed", "error", err)
	}
	g.answer(ctx, logger, cq.ID, "Please provide a rejection reason.")
}

func (g *Gateway) handleReason(ctx context.Context, logger *slog.Logger, msg *models.Message) {
	actor := service.Actor{UserID: msg.From.ID, Handle: displayHandle(msg.From)}

	reply := service.ReasonReply{Text: msg.Text}
	if r := msg.ReplyToMessage; r != nil {
		reply.RepliedToRef = domain.MessageRef(r.ID)
		reply.RepliedToText = r.Text
		if reply.RepliedToText == "" {
			// Photo-backed cards carry their rendering in the caption.
			reply.RepliedToText = r.Caption
		}
	}

	outcome, err := g.svc.SubmitReason(ctx, actor, reply)
	if err != nil {
		if errors.Is(err, domain.ErrClaimNotFound) {
			g.reply(ctx, logger, msg.ID, "This claim has already been processed.")
			return
		}
		logger.Error("submit reason failed", "error", err)
		return
	}
	if outcome == nil {
		// Not part of any rejection dialogue; ordinary chat traffic.
		return
	}

	g.editCard(ctx, logger, outcome.Claim, outcome.Card)
	g.reply(ctx, logger, msg.ID, "Rejection recorded.")
}

// editCard rewrites the claim card in place: the caption for photo-backed
// cards, the message text otherwise.
func (g *Gateway) editCard(ctx context.Context, logger *slog.Logger, claim domain.Claim, card service.Card) {
	var err error
	if claim.EvidenceKind == domain.EvidencePhoto {
		_, err = g.api.EditMessageCaption(ctx, &bot.EditMessageCaptionParams{
			ChatID:    g.chatID,
			MessageID: int(claim.ClaimCardRef),
			Caption:   card.Text,
			ParseMode: markdown,
		})
	} else {
		_, err = g.api.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    g.chatID,
			MessageID: int(claim.ClaimCardRef),
			Text:      card.Text,
			ParseMode: markdown,
		})
	}
	if err != nil {
		logger.Error("edit claim card failed", "claim_id", claim.ID, "error", err)
	}
}

func (g *Gateway) approverSet(ctx context.Context) (service.ApproverSet, error) {
	members, err := g.api.GetChatAdministrators(ctx, &bot.GetChatAdministratorsParams{ChatID: g.chatID})
	if err != nil {
		return nil, err
	}

	set := make(service.ApproverSet, len(members))
	for _, m := range members {
		if u := memberUser(m); u != nil {
			set[u.ID] = struct{}{}
		}
	}
	return set, nil
}

func (g *Gateway) answer(ctx context.Context, logger *slog.Logger, callbackID, text string) {
	if _, err := g.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		logger.Error("answer callback failed", "error", err)
	}
}

func (g *Gateway) reply(ctx context.Context, logger *slog.Logger, toMessageID int, text string) {
	if _, err := g.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          g.chatID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: toMessageID},
	}); err != nil {
		logger.Error("send reply failed", "error", err)
	}
}
