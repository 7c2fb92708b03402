// Package cli реализует инструмент командной строки Helix.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Helix API.
// Работает через HTTP, не импортирует внутренние пакеты движка.
// CLI используется для правки pipelines, запуска executions
// и управления schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Helix API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок. Идентификатор пользователя передаётся
// в заголовке X-User-ID.
//
//	client := cli.NewClient("http://localhost:8080", "alice")
//	pipelines, err := client.ListPipelines()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: helix pipeline list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - pipeline: list, create, show, current, rename, delete
//   - node:     add, update, delete
//   - edge:     add, delete
//   - exec:     start, stop, node, status, history
//   - schedule: list, create, show, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewPipelineCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
