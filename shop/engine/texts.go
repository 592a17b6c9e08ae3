package engine

import "fmt"

// User-facing reply texts. The bot speaks Russian, matching the shop's audience.
const (
	msgOrderPrompt = "Введите данные для заказа (товар, кол-во, контакт, адрес). Или \"Отмена\"."

	msgProductLinkDetected = "Мы обнаружили товарную ссылку.\n" +
		"Хотите оформить заказ? Введите название, количество, контакт и адрес.\n" +
		"Для отмены введите \"Отмена\"."

	msgOrderCancelled = "Оформление заказа отменено."

	msgChangePrompt = "Введите новые данные или размер для изменения заказа. Для отмены введите \"Отмена\"."

	msgDelayedMarked = "Статус обновлен: заказ помечен как задержанный (более 2-х месяцев)."

	msgReturnPrompt = "Введите причину возврата и детали заказа. Для отмены введите \"Отмена\"."

	msgBackToMenu = "Возвращаемся в главное меню."

	msgOperationCancelled = "Операция отменена."

	msgReturnRegistered = "Запрос на возврат зарегистрирован. С вами свяжется администратор."

	msgOrderNotFound = "Заказ не найден. Пожалуйста, создайте новый заказ."

	msgNoOrderYet = "Заказ пока не оформлен. Нажмите \"Оформить заказ\"."

	msgAdminPrompt = "Напишите сообщение администратору. Для выхода \"Вернуться в меню\"."

	msgAdminForwarded = "Ваше сообщение для администратора отправлено. Ожидайте ответа."

	msgHelp = "Меню:\n" +
		"1. Оформить заказ\n" +
		"2. Инфо о заказе\n" +
		"3. Связаться с админом\n" +
		"Или отправьте ссылку с товаром.\n" +
		"Состояние текущего заказа — \"Смена данных/размера\", \"Нет, отправил >2х мес\", \"Возврат\"."

	msgFallback = "Введите команду или отправьте ссылку на товар. Или попробуйте \"Помощь\"."

	msgTryAgainLater = "Произошла ошибка. Пожалуйста, попробуйте позже."

	returnNotePrefix = "Причина возврата: "
)

func msgOrderAccepted(orderID int64, data string) string {
	return fmt.Sprintf("Ваш заказ (ID %d) принят:\n%s\nМы свяжемся с вами.", orderID, data)
}

func msgOrderUpdated(data string) string {
	return fmt.Sprintf("Заказ успешно обновлен:\n%s", data)
}

func msgOrderInfo(orderID int64, data, status string) string {
	return fmt.Sprintf("Информация о заказе (ID %d):\n%s\nСтатус: %s", orderID, data, status)
}

func msgQuoteFailed(symbol string, err error) string {
	return fmt.Sprintf("Ошибка при получении графика для %s: %v", symbol, err)
}
