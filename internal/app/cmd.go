package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandSeedUniversities は投入元ファイルから大学カタログを作成する。
	CommandSeedUniversities Command = "seed-universities"
	// CommandSeedImages は写真URLが未設定の大学に画像検索の結果を書き戻す。
	CommandSeedImages Command = "seed-images"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "seed-universities":
		return CommandSeedUniversities
	case "seed-images":
		return CommandSeedImages
	default:
		return CommandServe
	}
}

// needsServerConfig はサーバー用の必須設定が必要なコマンドかどうかを返す。
// シードとマイグレーションはDATABASE_URLのみで動作する。
func (c Command) needsServerConfig() bool {
	return c == CommandServe
}
