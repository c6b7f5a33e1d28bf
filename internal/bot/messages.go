package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
	"github.com/mmeshcher/otp-rental-bot/internal/provider"
	"github.com/mmeshcher/otp-rental-bot/internal/service"
)

const (
	buttonOKVIP1 = "📱 OKVIP1"
	buttonOKVIP2 = "📱 OKVIP2"
	buttonOrders = "📦 Đơn hàng"
	buttonHelp   = "❓ Hướng dẫn"

	textProcessing = "Đang xử lý..."

	welcomeText = "✨ <b>CHÀO MỪNG ĐẾN OKVIP BOT</b>\n\n" +
		"🎰 Thuê số OTP tự động\n" +
		"⚡ Nhanh chóng - Tiện lợi\n\n" +
		"👇 <b>Chọn dịch vụ:</b>"

	helpText = "❓ <b>HƯỚNG DẪN SỬ DỤNG</b>\n\n" +
		"<b>CÁCH DÙNG:</b>\n" +
		"1️⃣ Chọn OKVIP1 hoặc OKVIP2\n" +
		"2️⃣ Chọn nhà mạng\n" +
		"3️⃣ Nhận số điện thoại\n" +
		"4️⃣ Đợi mã OTP tự động\n\n" +
		"<b>LỆNH:</b>\n" +
		"/start - Khởi động bot\n\n" +
		"<b>NHÀ MẠNG:</b>\n" +
		"Mobifone, Vinaphone, Viettel\n" +
		"Vietnamobile, ITelecom, Wintel"

	noOrdersText      = "📭 <b>Chưa có đơn hàng</b>"
	forbiddenText     = "❌ Không có quyền xem số dư"
	balanceFailedText = "❌ Không lấy được số dư"

	timeLayout      = "15:04:05"
	orderTimeLayout = "15:04:05 02/01"
)

func chooseNetworkText(svc model.Service) string {
	return fmt.Sprintf("🎰 <b>%s</b>\n\n📶 <b>Chọn nhà mạng:</b>", html.EscapeString(svc.Label))
}

func searchingText(svc model.Service, network model.Network) string {
	return fmt.Sprintf("🎰 <b>%s</b>\n\n⏳ <b>Đang tìm số...</b>\n📶 <b>Nhà mạng:</b> %s",
		html.EscapeString(svc.Label), html.EscapeString(network.Label))
}

func rentSuccessText(order model.Order) string {
	return fmt.Sprintf("🎉 <b>THUÊ THÀNH CÔNG!</b>\n\n"+
		"🎰 <b>%s</b>\n"+
		"📞 <b>Số điện thoại:</b>\n<code>%s</code>\n\n"+
		"📶 <b>Nhà mạng:</b> %s\n"+
		"🆔 <b>Mã đơn:</b> <code>%s</code>\n\n"+
		"⚡ <b>Đang chờ OTP tự động...</b>",
		html.EscapeString(order.ServiceLabel),
		html.EscapeString(order.PhoneNumber),
		html.EscapeString(order.NetworkLabel),
		html.EscapeString(order.ID),
	)
}

func rentFailedText(label, networkLabel, reason string) string {
	return fmt.Sprintf("🎰 <b>%s</b>\n\n"+
		"❌ <b>THUÊ SỐ THẤT BẠI</b>\n\n"+
		"<b>Lý do:</b> %s\n"+
		"📶 <b>Nhà mạng:</b> %s\n\n"+
		"💡 Vui lòng thử lại sau",
		html.EscapeString(label), html.EscapeString(reason), html.EscapeString(networkLabel))
}

func otpReceivedText(order model.Order, viaVoice bool, at time.Time) string {
	text := fmt.Sprintf("✅ <b>OTP ĐÃ VỀ!</b>\n\n"+
		"🎰 <b>%s</b>\n"+
		"📞 <b>Số:</b> <code>%s</code>\n"+
		"📶 <b>Nhà mạng:</b> %s\n\n"+
		"🔑 <b>MÃ OTP:</b> <code>%s</code>\n\n"+
		"⏰ %s",
		html.EscapeString(order.ServiceLabel),
		html.EscapeString(order.PhoneNumber),
		html.EscapeString(order.NetworkLabel),
		html.EscapeString(order.OTPCode),
		at.Format(timeLayout),
	)
	if viaVoice {
		text += "\n📞 <i>(Nhận qua cuộc gọi)</i>"
	}
	return text
}

func orderExpiredText(order model.Order) string {
	return fmt.Sprintf("⏰ <b>HẾT THỜI GIAN CHỜ OTP</b>\n\n"+
		"🎰 <b>%s</b>\n"+
		"📞 <b>Số:</b> <code>%s</code>\n"+
		"📶 <b>Nhà mạng:</b> %s",
		html.EscapeString(order.ServiceLabel),
		html.EscapeString(order.PhoneNumber),
		html.EscapeString(order.NetworkLabel),
	)
}

func ordersText(orders []model.Order) string {
	if len(orders) == 0 {
		return noOrdersText
	}

	var b strings.Builder
	b.WriteString("📋 <b>ĐƠN HÀNG</b>\n\n")
	for _, o := range orders {
		icon, status := statusView(o.Status)
		fmt.Fprintf(&b, "%s <b>%s</b> - %s\n", icon, html.EscapeString(o.ServiceLabel), status)
		fmt.Fprintf(&b, "📞 <code>%s</code>\n", html.EscapeString(o.PhoneNumber))
		fmt.Fprintf(&b, "📶 %s\n", html.EscapeString(o.NetworkLabel))
		if o.OTPCode != "" {
			fmt.Fprintf(&b, "🔑 <code>%s</code>\n", html.EscapeString(o.OTPCode))
		}
		fmt.Fprintf(&b, "⏰ %s\n\n", o.CreatedAt.Format(orderTimeLayout))
	}
	return b.String()
}

func statusView(s model.OrderStatus) (string, string) {
	switch s {
	case model.OrderStatusCompleted:
		return "✅", "Đã nhận OTP"
	case model.OrderStatusWaiting:
		return "⏳", "Đang chờ"
	case model.OrderStatusTimeout:
		return "⌛", "Hết hạn"
	default:
		return "❓", "Không rõ"
	}
}

func balanceText(amount decimal.Decimal) string {
	return fmt.Sprintf("💰 <b>Số dư:</b> $%s", formatMoney(amount))
}

// formatMoney форматирует сумму с двумя знаками и разделителями тысяч: 12,345.60.
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

// failureReason переводит ошибку аренды в текст для пользователя.
func failureReason(err error) string {
	var perr *provider.Error
	switch {
	case errors.As(err, &perr):
		switch perr.Reason {
		case provider.ReasonInsufficientBalance:
			return "Số dư không đủ"
		case provider.ReasonPoolExhausted:
			return "Kho số tạm hết"
		case provider.ReasonServiceUnavailable:
			return "Dịch vụ không khả dụng"
		case provider.ReasonRateLimited:
			return "Vượt quá giới hạn"
		default:
			if perr.Message != "" {
				return perr.Message
			}
			return "Lỗi không xác định"
		}
	case errors.Is(err, provider.ErrTransport):
		return "Không kết nối được máy chủ"
	case errors.Is(err, service.ErrUnknownService):
		return "Dịch vụ không hợp lệ"
	case errors.Is(err, service.ErrUnknownNetwork):
		return "Nhà mạng không hợp lệ"
	default:
		return "Lỗi không xác định"
	}
}
