package chatbot

import (
	"fmt"
	"strings"

	"lunchbot-api/internal/common"
	"lunchbot-api/internal/events"
	"lunchbot-api/internal/ledger"
)

// User-facing message templates. The bot speaks Uzbek to its users; log
// lines and errors stay in English.

func msgAskName() string {
	return "Ismingizni kiriting:"
}

func msgAskPhone() string {
	return "Telefon raqamingizni yuboring (+998 bilan):"
}

func msgBadName() string {
	return "Ism noto'g'ri. Qaytadan kiriting:"
}

func msgBadPhone() string {
	return "Raqam noto'g'ri. Qaytadan kiriting:"
}

func msgRegistered(balance int64) string {
	return fmt.Sprintf("Ro'yxatdan o'tish yakunlandi. Balans: %d so'm.", balance)
}

func msgWelcomeBack(name string) string {
	return fmt.Sprintf("Assalomu alaykum, %s!\nNimani bajarishni hohlaysiz? /help", name)
}

func msgHelp(admin bool) string {
	text := "/start - Ro'yxatdan o'ting\n" +
		"/menu - Taom tanlash\n" +
		"/balance - Balansni ko'rish\n" +
		"/attendance - Qatnashuv tarixini ko'rish\n" +
		"/history - To'lovlar tarixini ko'rish\n" +
		"/name - Ismingizni o'zgartirish\n" +
		"/cancel_lunch - Buyurtmani bekor qilish\n" +
		"/help - Yordam"
	if admin {
		text += "\n\nAdmin:\n" +
			"/users - Foydalanuvchilar ro'yxati\n" +
			"/adjust <id> <summa> - Balansni o'zgartirish\n" +
			"/setprice <id> <narx> - Kunlik narx\n" +
			"/promote <id> - Admin qilish\n" +
			"/demote <id> - Adminlikdan olish\n" +
			"/remove <id> - Foydalanuvchini o'chirish\n" +
			"/cancel_day - Kunni bekor qilish\n" +
			"/notify - Barchaga xabar\n" +
			"/test_survey - Test so'rovi\n" +
			"/sync - Jadvalni yangilash"
	}
	return text
}

func msgNotRegistered() string {
	return "Iltimos, avval /start bilan ro'yxatdan o'ting."
}

func msgBalance(balance int64) string {
	return fmt.Sprintf("Balansingiz: %d so'm.", balance)
}

func msgAttendanceHistory(days common.DayList) string {
	if len(days) == 0 {
		return "Hech qanday qatnashuv yo'q."
	}
	lines := make([]string, len(days))
	for i, d := range days {
		lines[i] = d.String()
	}
	return "Qatnashgan kunlar:\n" + strings.Join(lines, "\n")
}

func msgTransactionHistory(txns []*ledger.Transaction) string {
	if len(txns) == 0 {
		return "Hech qanday tranzaksiya yo'q."
	}
	var b strings.Builder
	b.WriteString("To'lovlar tarixi:\n")
	for _, t := range txns {
		fmt.Fprintf(&b, "%s: %s (%d so'm)\n",
			t.CreatedAt.Format("2006-01-02"), t.Description, t.Amount)
	}
	return strings.TrimRight(b.String(), "\n")
}

func msgAttendancePrompt(test bool) string {
	if test {
		return "⚠️ TEST: Bugun tushlikka borasizmi?"
	}
	return "Bugun tushlikka borasizmi?"
}

func msgPickDish(test bool) string {
	if test {
		return "⚠️ TEST: 🍽 Iltimos, taom tanlang:"
	}
	return "🍽 Iltimos, taom tanlang:"
}

func msgNoMenuToday() string {
	return "Bugun tushlik yo'q (dam olish kuni)."
}

func msgDishConfirmed(dish string, balance int64, test bool) string {
	prefix := ""
	if test {
		prefix = "⚠️ TEST: "
	}
	return fmt.Sprintf("%s✅ %s tanlandi. Balansingiz: %d so'm.", prefix, dish, balance)
}

func msgAlreadyConfirmed(dish string, balance int64) string {
	if dish == "" {
		dish = "Tanlanmagan"
	}
	return fmt.Sprintf("⚠️ Siz bugun allaqachon ro'yxatdasiz (%s). Balansingiz: %d so'm.", dish, balance)
}

func msgDeclined() string {
	return "Siz bugun ro'yxatda emassiz."
}

func msgCancelled(day common.Day, balance int64, test bool) string {
	prefix := ""
	if test {
		prefix = "⚠️ TEST: "
	}
	return fmt.Sprintf("%s❌ %s uchun buyurtma bekor qilindi. Balans: %d so'm.", prefix, day, balance)
}

func msgCancelCutoffPassed() string {
	return "Bekor qilish vaqti o'tdi."
}

func msgPickingCancelled() string {
	return "❌ Ro'yxatga olish bekor qilindi."
}

func msgNameChanged(name string) string {
	return fmt.Sprintf("Ismingiz muvaffaqiyatli o'zgardi: %s", name)
}

func msgOperationCancelled() string {
	return "Operatsiya bekor qilindi."
}

func msgAdminOnly() string {
	return "Bu buyruq faqat adminlar uchun."
}

func msgUsersList(users []*ledger.User) string {
	if len(users) == 0 {
		return "Hech qanday foydalanuvchi yo'q."
	}
	var b strings.Builder
	for _, u := range users {
		fmt.Fprintf(&b, "• %s (ID: %d)\n   💰 Balans: %d so'm | 📝 Narx: %d so'm\n\n",
			u.Name, u.TelegramID, u.Balance, u.DailyPrice)
	}
	return strings.TrimRight(b.String(), "\n")
}

func msgBalanceAdjusted(name string, amount, newBalance int64) string {
	sign := "+"
	if amount < 0 {
		sign = ""
	}
	return fmt.Sprintf("✅ %s balansiga %s%d so'm qo'shildi.\nYangi balans: %d so'm", name, sign, amount, newBalance)
}

func msgPriceSet(name string, price int64) string {
	return fmt.Sprintf("✅ %s uchun kunlik narx %d so'mga o'zgartirildi!", name, price)
}

func msgPromoted(name string) string {
	return fmt.Sprintf("✅ %s admin qilindi!", name)
}

func msgDemoted(name string) string {
	return fmt.Sprintf("✅ %s adminlikdan olib tashlandi!", name)
}

func msgUserRemoved() string {
	return "✅ Foydalanuvchi o'chirildi!"
}

func msgAskCancelDate() string {
	return "Qaysi kun uchun tushlikni bekor qilmoqchisiz? (YYYY-MM-DD formatida)\n" +
		"Bugungi kun uchun bo'lsa, 'bugun' deb yozing."
}

func msgBadDate() string {
	return "Noto'g'ri format. Iltimos, YYYY-MM-DD formatida yoki 'bugun' deb yozing."
}

func msgAskCancelReason() string {
	return "Bekor qilish sababini kiriting:"
}

func msgDayCancelledAdmin(day common.Day, affected int) string {
	return fmt.Sprintf("✅ %s uchun tushlik bekor qilindi.\nJami %d ta foydalanuvchi ta'sirlandi.", day, affected)
}

func msgDayCancelledUser(day common.Day, reason string, refund int64) string {
	text := fmt.Sprintf("⚠️ Eslatma: %s kuni tushlik bekor qilindi.\nSabab: %s\n", day, reason)
	if refund > 0 {
		text += fmt.Sprintf("Balansingizga %d so'm qaytarildi.", refund)
	}
	return text
}

func msgAskNotifyText() string {
	return "⚠️ Barcha foydalanuvchilarga yubormoqchi bo'lgan xabarni kiriting:"
}

func msgConfirmNotify(text string) string {
	return fmt.Sprintf("⚠️ Quyidagi xabarni barcha foydalanuvchilarga yuborishni tasdiqlaysizmi?\n\n%s", text)
}

func msgNotifyCancelled() string {
	return "❌ Xabar yuborish bekor qilindi."
}

func msgBroadcastResult(sent int, failed []string) string {
	text := fmt.Sprintf("✅ %d foydalanuvchiga yuborildi.", sent)
	if len(failed) > 0 {
		text += fmt.Sprintf("\n❌ %d foydalanuvchiga yuborilmadi:\n%s", len(failed), strings.Join(failed, "\n"))
	}
	return text
}

func msgDebtReminder(balance int64) string {
	return fmt.Sprintf("⚠️ Eslatma: qarzingiz %d so'm. Iltimos, balansingizni to'ldiring.", -balance)
}

func msgLowBalance(balance int64) string {
	return fmt.Sprintf("Eslatma: balansingiz %d so'm, iltimos to'ldiring.", balance)
}

func msgAdminSummary(s events.DailySummaryReady) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Bugungi tushlik uchun yig'ilish:\n\n👥 Jami: %d kishi\n\n", len(s.Attendees))

	b.WriteString("📝 Ro'yxat:\n")
	if len(s.Attendees) == 0 {
		b.WriteString("Hech kim yo'q\n")
	}
	for i, a := range s.Attendees {
		dish := a.Dish
		if dish == "" {
			dish = "Tanlanmagan"
		}
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, a.Name, dish)
	}

	b.WriteString("\n🍽 Taomlar statistikasi:\n")
	if len(s.Counts) == 0 {
		b.WriteString("— Hech qanday taom tanlanmadi\n")
	}
	for i, c := range s.Counts {
		fmt.Fprintf(&b, "%d. %s — %d ta\n", i+1, c.Dish, c.Count)
	}

	if len(s.Declined) > 0 {
		b.WriteString("\n❌ Rad etganlar:\n")
		for i, name := range s.Declined {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
	}
	if len(s.Pending) > 0 {
		b.WriteString("\n⏳ Javob bermaganlar:\n")
		for i, name := range s.Pending {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func msgAttendeeSummary(topDishes []string) string {
	switch len(topDishes) {
	case 0:
		return "✅🍽️ Siz bugungi tushlik ro'yxatidasiz.\n\n🥄 Bugun asosiy taom aniqlanmadi."
	case 1:
		return fmt.Sprintf("✅🍽️ Siz bugungi tushlik ro'yxatidasiz.\n\n🥇 Bugun tushlik uchun tanlangan taom: 🍛 %s", topDishes[0])
	default:
		return fmt.Sprintf("✅🍽️ Siz bugungi tushlik ro'yxatidasiz.\n\n🥇 Bugun tushlik uchun tanlangan taomlar: 🍛 %s",
			strings.Join(topDishes, " va "))
	}
}

func msgSyncResult(updated, skipped, failed int) string {
	return fmt.Sprintf("✅ Jadval yangilandi: %d ta yangilandi, %d ta o'tkazildi, %d ta xato.", updated, skipped, failed)
}

func msgInternalError() string {
	return "❌ Xatolik yuz berdi. Iltimos, qaytadan urinib ko'ring."
}
